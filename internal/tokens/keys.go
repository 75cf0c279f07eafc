package tokens

import (
	"errors"
	"strings"
)

// KeySource hands the codec its signing and verification secrets. Keys are
// looked up per token through the "kid" header, so a rotation can add a new
// active key while older ones stay verify-only.
type KeySource interface {
	Active() (kid string, key []byte)
	Lookup(kid string) ([]byte, bool)
}

// StaticKeys is loaded once at startup and never mutated afterwards.
type StaticKeys struct {
	activeKID string
	keys      map[string][]byte
}

func NewStaticKeys(activeKID string, active []byte, verifyOnly map[string][]byte) (*StaticKeys, error) {
	activeKID = strings.TrimSpace(activeKID)
	if activeKID == "" {
		return nil, errors.New("active key id is empty")
	}
	if len(active) == 0 {
		return nil, errors.New("active signing key is empty")
	}

	keys := make(map[string][]byte, len(verifyOnly)+1)
	for kid, key := range verifyOnly {
		if strings.TrimSpace(kid) == "" || len(key) == 0 {
			return nil, errors.New("verify key set contains an empty kid or key")
		}
		keys[kid] = append([]byte(nil), key...)
	}
	keys[activeKID] = append([]byte(nil), active...)

	return &StaticKeys{activeKID: activeKID, keys: keys}, nil
}

func (s *StaticKeys) Active() (string, []byte) {
	return s.activeKID, s.keys[s.activeKID]
}

func (s *StaticKeys) Lookup(kid string) ([]byte, bool) {
	key, ok := s.keys[kid]
	return key, ok
}
