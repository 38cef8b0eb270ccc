package crypto

import "sync"

// KeyStore resolves the signing key for a transparent output's key hash.
type KeyStore interface {
	GetKey(pubKeyHash [20]byte) (*PrivateKey, bool)
}

// MemoryKeyStore is a KeyStore backed by a map. It is safe for concurrent
// use.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[[20]byte]*PrivateKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[[20]byte]*PrivateKey)}
}

// AddKey stores pk and returns its key hash.
func (s *MemoryKeyStore) AddKey(pk *PrivateKey) [20]byte {
	hash := pk.PublicKey().Hash160()
	s.mu.Lock()
	s.keys[hash] = pk
	s.mu.Unlock()
	return hash
}

func (s *MemoryKeyStore) GetKey(pubKeyHash [20]byte) (*PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.keys[pubKeyHash]
	return pk, ok
}
