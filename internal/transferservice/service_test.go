package transferservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mockbank/ledgersvc/internal/domain"
	"github.com/mockbank/ledgersvc/internal/transferrepo"
	"github.com/mockbank/ledgersvc/pkg/randompkg"
)

func testAccount(id, owner string, status domain.AccountStatus) domain.Account {
	return domain.Account{
		ID:        id,
		Owner:     owner,
		Status:    status,
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}

type serviceMocks struct {
	repo           *MockRepo
	accountService *MockAccountService
	notifier       *MockNotifier
	queue          *MockQueue
}

func TestCreate(t *testing.T) {
	t.Parallel()

	owner := randompkg.Owner()
	otherOwner := randompkg.Owner()

	fromAccount := testAccount("ACC1001", owner, domain.StatusActive)
	toAccount := testAccount("ACC2001", otherOwner, domain.StatusActive)

	amount := decimal.RequireFromString("100.00")

	testCases := []struct {
		name          string
		arg           domain.CreateTransferParams
		buildStubs    func(m serviceMocks)
		checkResponse func(t *testing.T, res domain.CreateTransferResult, err error)
	}{
		{
			name: "NegativeAmount",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        decimal.RequireFromString("-5"),
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrNegativeAmount)
			},
		},
		{
			name: "ZeroAmount",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        decimal.Zero,
			},
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrNegativeAmount)
			},
		},
		{
			name: "SameAccount",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   fromAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrSameAccount)
			},
		},
		{
			name: "SourceNotOwned",
			arg: domain.CreateTransferParams{
				FromAccountID: toAccount.ID,
				ToAccountID:   fromAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrAccountNotFound)
			},
		},
		{
			name: "SourceFrozen",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(testAccount(fromAccount.ID, owner, domain.StatusFrozen), nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrSourceAccountFrozen)
			},
		},
		{
			name: "DestinationClosed",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(testAccount(toAccount.ID, otherOwner, domain.StatusClosed), nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrDestinationAccountClosed)
			},
		},
		{
			name: "DuplicateIdempotencyKey",
			arg: domain.CreateTransferParams{
				FromAccountID:  fromAccount.ID,
				ToAccountID:    toAccount.ID,
				Amount:         amount,
				IdempotencyKey: "key-1",
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{}, domain.ErrDuplicateTransfer)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrDuplicateTransfer)
			},
		},
		{
			name: "InsufficientBalance",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferProcessing}, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Eq(fromAccount.ID), gomock.Eq(toAccount.ID), gomock.Any()).
					Times(1).
					Return(transferrepo.ApplyResult{}, domain.ErrInsufficientBalance)
				m.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Eq(domain.TransferFailed)).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferFailed}, nil)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Eq(domain.TransferFailed)).Times(1)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.ErrorIs(t, err, domain.ErrInsufficientBalance)
			},
		},
		{
			name: "ApplyInternalError",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferProcessing}, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(transferrepo.ApplyResult{}, errors.New("deadlock detected"))
				m.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Eq(domain.TransferFailed)).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferFailed}, nil)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Eq(domain.TransferFailed)).Times(1)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				// Internal causes are not leaked to the caller.
				require.ErrorIs(t, err, domain.ErrTransactionFailed)
			},
		},
		{
			name: "OKSync",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferProcessing}, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Eq(fromAccount.ID), gomock.Eq(toAccount.ID), gomock.Any()).
					Times(1).
					Return(transferrepo.ApplyResult{}, nil)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Eq(domain.TransferSuccess)).Times(1)
				m.queue.EXPECT().Enqueue(gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.NoError(t, err)
				require.Equal(t, domain.TransferSuccess, res.Status)
				require.NotEmpty(t, res.TransferID)
				require.False(t, res.Accepted)
			},
		},
		{
			name: "OKAsync",
			arg: domain.CreateTransferParams{
				FromAccountID: fromAccount.ID,
				ToAccountID:   toAccount.ID,
				Amount:        amount,
				Mode:          domain.ModeAsync,
			},
			buildStubs: func(m serviceMocks) {
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(fromAccount.ID)).
					Times(1).
					Return(fromAccount, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(toAccount.ID)).
					Times(1).
					Return(toAccount, nil)
				m.repo.EXPECT().CreateWithAudit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferProcessing}, nil)
				m.queue.EXPECT().Enqueue(gomock.Any()).Times(1)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.CreateTransferResult, err error) {
				require.NoError(t, err)
				require.Equal(t, domain.TransferProcessing, res.Status)
				require.NotEmpty(t, res.TransferID)
				require.True(t, res.Accepted)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := serviceMocks{
				repo:           NewMockRepo(ctrl),
				accountService: NewMockAccountService(ctrl),
				notifier:       NewMockNotifier(ctrl),
				queue:          NewMockQueue(ctrl),
			}

			tc.buildStubs(m)

			service := New(m.repo, m.accountService, m.notifier, m.queue, true)

			res, err := service.Create(context.Background(), owner, "req-1", tc.arg)
			tc.checkResponse(t, res, err)
		})
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	transfer := domain.Transfer{
		ID:            "e0b1c2d3-0000-0000-0000-000000000001",
		FromAccountID: "ACC1001",
		ToAccountID:   "ACC2001",
		Amount:        decimal.RequireFromString("100.00"),
		Status:        domain.TransferProcessing,
	}

	testCases := []struct {
		name       string
		buildStubs func(m serviceMocks)
		wantErr    error
	}{
		{
			name: "OK",
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(transfer, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Eq(transfer.ID), gomock.Eq(transfer.FromAccountID), gomock.Eq(transfer.ToAccountID), gomock.Any()).
					Times(1).
					Return(transferrepo.ApplyResult{}, nil)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Eq(transfer.ID), gomock.Eq(domain.TransferSuccess)).Times(1)
			},
		},
		{
			name: "ApplyFails",
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(transfer, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(transferrepo.ApplyResult{}, domain.ErrInsufficientBalance)
				m.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Eq(transfer.ID), gomock.Eq(domain.TransferFailed)).
					Times(1).
					Return(domain.Transfer{Status: domain.TransferFailed}, nil)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Eq(transfer.ID), gomock.Eq(domain.TransferFailed)).Times(1)
			},
		},
		{
			name: "AlreadyFinal",
			buildStubs: func(m serviceMocks) {
				done := transfer
				done.Status = domain.TransferSuccess

				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(done, nil)
				m.repo.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
		},
		{
			name: "NotFound",
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(domain.Transfer{}, domain.ErrTransferNotFound)
				m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
		},
		{
			name: "GetInternalError",
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(domain.Transfer{}, errors.New("connection reset"))
			},
			wantErr: errors.New("connection reset"),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := serviceMocks{
				repo:           NewMockRepo(ctrl),
				accountService: NewMockAccountService(ctrl),
				notifier:       NewMockNotifier(ctrl),
				queue:          NewMockQueue(ctrl),
			}

			tc.buildStubs(m)

			service := New(m.repo, m.accountService, m.notifier, m.queue, true)

			err := service.Finalize(context.Background(), transfer.ID)

			if tc.wantErr != nil {
				require.EqualError(t, err, tc.wantErr.Error())
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	owner := randompkg.Owner()

	transfer := domain.Transfer{
		ID:            "e0b1c2d3-0000-0000-0000-000000000002",
		FromAccountID: "ACC1001",
		ToAccountID:   "ACC2001",
		Amount:        decimal.RequireFromString("42.00"),
		Status:        domain.TransferSuccess,
	}

	testCases := []struct {
		name       string
		username   string
		buildStubs func(m serviceMocks)
		wantErr    error
	}{
		{
			name:     "OK",
			username: owner,
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(transfer, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.FromAccountID)).
					Times(1).
					Return(testAccount(transfer.FromAccountID, owner, domain.StatusActive), nil)
			},
		},
		{
			name:     "NotOwner",
			username: "intruder",
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(transfer, nil)
				m.accountService.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.FromAccountID)).
					Times(1).
					Return(testAccount(transfer.FromAccountID, owner, domain.StatusActive), nil)
			},
			wantErr: domain.ErrInvalidOwner,
		},
		{
			name:     "NotFound",
			username: owner,
			buildStubs: func(m serviceMocks) {
				m.repo.EXPECT().Get(gomock.Any(), gomock.Eq(transfer.ID)).
					Times(1).
					Return(domain.Transfer{}, domain.ErrTransferNotFound)
			},
			wantErr: domain.ErrTransferNotFound,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := serviceMocks{
				repo:           NewMockRepo(ctrl),
				accountService: NewMockAccountService(ctrl),
				notifier:       NewMockNotifier(ctrl),
				queue:          NewMockQueue(ctrl),
			}

			tc.buildStubs(m)

			service := New(m.repo, m.accountService, m.notifier, m.queue, true)

			got, err := service.Get(context.Background(), tc.username, transfer.ID)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, transfer, got)
		})
	}
}
