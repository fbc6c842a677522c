package ledger_test

import (
	"testing"

	"github.com/battlearena/arena-server-go/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type allowSet map[string]bool

func (s allowSet) Allowed(identity string) bool { return s[identity] }

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.NewLedger("admin", 1_000_000, allowSet{"admin": true, "sys:battle-resolver": true}, zaptest.NewLogger(t))
}

func TestGenesisAllocation(t *testing.T) {
	l := newTestLedger(t)
	assert.Equal(t, uint64(1_000_000), l.TotalSupply())
	assert.Equal(t, uint64(1_000_000), l.BalanceOf("admin"))
	assert.Equal(t, uint64(0), l.BalanceOf("alice"))
}

func TestMintRequiresAuthorization(t *testing.T) {
	l := newTestLedger(t)

	err := l.Mint("alice", "alice", 100)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.Equal(t, uint64(0), l.BalanceOf("alice"))
	assert.Equal(t, uint64(1_000_000), l.TotalSupply())

	require.NoError(t, l.Mint("sys:battle-resolver", "alice", 10))
	assert.Equal(t, uint64(10), l.BalanceOf("alice"))
	assert.Equal(t, uint64(1_000_010), l.TotalSupply())
}

func TestMintRejectsZeroAmount(t *testing.T) {
	l := newTestLedger(t)
	require.ErrorIs(t, l.Mint("admin", "alice", 0), ledger.ErrInvalidAmount)
}

func TestTransferMovesExactAmount(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint("admin", "alice", 100))

	require.NoError(t, l.Transfer("alice", "bob", 40))
	assert.Equal(t, uint64(60), l.BalanceOf("alice"))
	assert.Equal(t, uint64(40), l.BalanceOf("bob"))

	err := l.Transfer("alice", "bob", 61)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, uint64(60), l.BalanceOf("alice"))
	assert.Equal(t, uint64(40), l.BalanceOf("bob"))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint("admin", "alice", 100))

	err := l.TransferFrom("escrow", "alice", "bob", 10)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	l.Approve("alice", "escrow", 50)
	assert.Equal(t, uint64(50), l.Allowance("alice", "escrow"))

	require.NoError(t, l.TransferFrom("escrow", "alice", "bob", 30))
	assert.Equal(t, uint64(70), l.BalanceOf("alice"))
	assert.Equal(t, uint64(30), l.BalanceOf("bob"))
	assert.Equal(t, uint64(20), l.Allowance("alice", "escrow"))

	err = l.TransferFrom("escrow", "alice", "bob", 21)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
}

func TestTransferFromInsufficientBalanceKeepsAllowance(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint("admin", "alice", 10))

	l.Approve("alice", "escrow", 100)
	err := l.TransferFrom("escrow", "alice", "bob", 50)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, uint64(100), l.Allowance("alice", "escrow"))
	assert.Equal(t, uint64(10), l.BalanceOf("alice"))
}
