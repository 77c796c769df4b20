package nudge

import "context"

type mockNotifier struct {
	called bool
	digest Digest
	err    error
}

func (m *mockNotifier) SendNudge(ctx context.Context, d Digest) error {
	m.called = true
	m.digest = d
	return m.err
}
