// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"

	"github.com/archon-research/stl-market/internal/domain/entity"
)

// Signer is the signing gateway. The market core never holds keys; every
// transaction it builds is handed to a Signer and may be declined.
type Signer interface {
	// Sign returns the signed form of tx. A nil result with a nil error means
	// the user declined; it is not a failure to be retried.
	Sign(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error)

	// SignMessage signs raw bytes on behalf of account. A nil signature with a
	// nil error means the user declined.
	SignMessage(ctx context.Context, account string, message []byte) ([]byte, error)
}

// Submitter broadcasts a signed transaction. It returns once the node has
// accepted it; inclusion is observed separately by polling.
type Submitter interface {
	Submit(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error)

func (f SubmitterFunc) Submit(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error) {
	return f(ctx, tx)
}

// TxOptions is supplied by the caller of every market operation.
type TxOptions struct {
	// Signer is required for any operation that has to submit.
	Signer Signer

	// Sender overrides submission. When nil, the signed transaction goes
	// through the ledger adapter for its chain.
	Sender Submitter
}
