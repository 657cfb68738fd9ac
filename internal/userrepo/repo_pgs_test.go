package userrepo

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/pkg/configpkg"
	"github.com/mockbank/ledgersvc/pkg/dbpkg"
	"github.com/mockbank/ledgersvc/pkg/passpkg"
	"github.com/mockbank/ledgersvc/pkg/randompkg"

	_ "github.com/lib/pq"
)

var (
	testDB   *sql.DB
	testRepo *RepoPGS
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	testDB, err = dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		log.Fatal("cannot connect to db:", err)
	}

	testRepo = NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func TestGet(t *testing.T) {
	username := randompkg.Owner()

	hashed, err := passpkg.Hash(randompkg.String(10))
	require.NoError(t, err)

	_, err = testDB.ExecContext(context.Background(),
		`INSERT INTO users (username, hashed_password) VALUES ($1, $2)`,
		username, hashed)
	require.NoError(t, err)

	user, err := testRepo.Get(context.Background(), username)
	require.NoError(t, err)
	require.Equal(t, username, user.Username)
	require.Equal(t, hashed, user.HashedPassword)
	require.NotZero(t, user.ID)
	require.NotZero(t, user.CreatedAt)
}

func TestGetNotFound(t *testing.T) {
	_, err := testRepo.Get(context.Background(), "nosuchuser")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
