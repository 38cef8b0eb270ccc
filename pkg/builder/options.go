package builder

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suffix-labs/zcash-txbuilder/pkg/crypto"
	"github.com/suffix-labs/zcash-txbuilder/pkg/orchard"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sapling"
	"github.com/suffix-labs/zcash-txbuilder/pkg/shuffle"
	"github.com/suffix-labs/zcash-txbuilder/pkg/sprout"
	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

// CoinsView gives read access to unspent transparent outputs.
type CoinsView interface {
	GetCoin(outpoint transaction.OutPoint) (transaction.TxOut, bool)
}

// Option configures a TransactionBuilder.
type Option func(*state)

// WithKeyStore supplies the keys that sign transparent inputs. It is
// required before AddTransparentInput.
func WithKeyStore(ks crypto.KeyStore) Option {
	return func(st *state) { st.keys = ks }
}

// WithCoinsView makes Build check every transparent input against view.
// lock, if non-nil, is held for the whole of Build.
func WithCoinsView(view CoinsView, lock sync.Locker) Option {
	return func(st *state) {
		st.coins = view
		st.coinsLock = lock
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(st *state) { st.log = l }
}

// WithRandomness sets the source of secret randomness for every pool. The
// default is frand.Reader.
func WithRandomness(r io.Reader) Option {
	return func(st *state) { st.rand = r }
}

// WithShuffle sets the generator that orders notes inside every shielded
// pool. The default is shuffle.Default.
func WithShuffle(gen shuffle.Gen) Option {
	return func(st *state) { st.gen = gen }
}

// WithSproutBackend enables the Sprout pool.
func WithSproutBackend(p sprout.Prover) Option {
	return func(st *state) { st.sproutProver = p }
}

// WithSaplingBackend enables the Sapling pool.
func WithSaplingBackend(b sapling.Backend) Option {
	return func(st *state) { st.saplingBackend = b }
}

// WithOrchardBackend enables the Orchard pool. It is only used when an
// Orchard anchor is passed to NewBuilder.
func WithOrchardBackend(b orchard.Backend) Option {
	return func(st *state) { st.orchardBackend = b }
}
