package detection

import (
	"proctor/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlocklist_Match(t *testing.T) {
	req := require.New(t)
	bl, err := NewBlocklist([]string{"Discord", "chrome", "team viewer", "chrome"}, nil)
	req.NoError(err)

	tests := []struct {
		name    string
		process string
		blocked bool
		pattern string
	}{
		{"exact name", "discord", true, "discord"},
		{"case and extension", "Discord.exe", true, "discord"},
		{"substring", "google-chrome-stable", true, "chrome"},
		{"pattern with space", "TeamViewer_Service.exe", true, "teamviewer"},
		{"harmless", "python3", false, ""},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, blocked := bl.Match(tt.process)
			req.Equal(tt.blocked, blocked)
			req.Equal(tt.pattern, verdict.Pattern)
		})
	}
}

func TestBlocklist_AllowList(t *testing.T) {
	req := require.New(t)

	// Given an allow list and a block list
	bl, err := NewBlocklist([]string{"chrome"}, []string{"exambrowser", "systemd"})
	req.NoError(err)

	// Then blocked wins, allowed passes, anything else is not allowed
	_, blocked := bl.Match("exambrowser-chrome-helper")
	req.True(blocked)
	_, blocked = bl.Match("ExamBrowser.exe")
	req.False(blocked)
	verdict, blocked := bl.Match("spotify")
	req.True(blocked)
	req.True(verdict.NotAllowed)
}

func TestBlocklist_Empty(t *testing.T) {
	req := require.New(t)
	bl, err := NewBlocklist(nil, []string{"", "  "})
	req.NoError(err)
	_, blocked := bl.Match("anything")
	req.False(blocked)
}

func TestPermissionGate_SuppressesFaceAbsenceUntilExpiry(t *testing.T) {
	req := require.New(t)
	expired := make(chan struct{})
	gate := NewPermissionGate(func() { close(expired) })
	defer gate.Stop()

	// Given no permission, everything is reported
	req.True(gate.Allow(domain.FaceAbsence))

	// When a short permission is approved
	gate.Activate(time.Now().Add(100 * time.Millisecond))

	// Then only face absence is suppressed
	req.True(gate.Active())
	req.False(gate.Allow(domain.FaceAbsence))
	req.True(gate.Allow(domain.MultipleFaces))

	// And after expiry the gate closes by itself
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		req.Fail("gate should expire")
	}
	req.False(gate.Active())
	req.True(gate.Allow(domain.FaceAbsence))
}

func TestPermissionGate_DeadlineInThePast(t *testing.T) {
	req := require.New(t)
	gate := NewPermissionGate(nil)

	gate.Activate(time.Now().Add(-time.Minute))

	req.False(gate.Active())
}
