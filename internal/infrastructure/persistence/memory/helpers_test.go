package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alem-hub/coursequest/internal/domain/wallet"
)

func seedEntries(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e := wallet.NewEntry(1, wallet.DirectionCredit, wallet.ReasonGrant, 1, int64(i+1), fmt.Sprintf("ref-%d", i), testNow)
		require.NoError(t, s.Wallets().AppendEntry(context.Background(), e))
	}
}
