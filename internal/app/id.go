package app

import "crypto/rand"

// generateID produces a random hex identifier.
// Isolated here so the ID strategy can evolve independently.
func generateID() (string, error) {
	return randomHex(16)
}

// generateAPIKey produces a tenant API key. Longer than tenant IDs so
// keys are not guessable from the ID space.
func generateAPIKey() (string, error) {
	s, err := randomHex(24)
	if err != nil {
		return "", err
	}
	return "ek_" + s, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, n*2)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return string(out), nil
}
