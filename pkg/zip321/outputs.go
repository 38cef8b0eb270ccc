package zip321

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/suffix-labs/zcash-txbuilder/pkg/builder"
	"github.com/suffix-labs/zcash-txbuilder/pkg/params"
	"github.com/suffix-labs/zcash-txbuilder/pkg/script"
)

// AddTo adds one transparent output to b per payment. Every payment needs
// an amount and a transparent address on net; transparent outputs cannot
// carry a memo.
func (r *Request) AddTo(b *builder.TransactionBuilder, net *params.Network) error {
	for i, p := range r.Payments {
		if !p.HasAmount {
			return fmt.Errorf("zip321: payment %d has no amount", i)
		}
		if len(p.Memo) > 0 {
			return fmt.Errorf("zip321: payment %d has a memo but pays a transparent address", i)
		}
		addr, err := script.DecodeAddress(p.Address, net)
		if err != nil {
			return errors.Wrapf(err, "zip321: payment %d", i)
		}
		if err := b.AddTransparentOutput(addr, p.Amount); err != nil {
			return errors.Wrapf(err, "zip321: payment %d", i)
		}
	}
	return nil
}
