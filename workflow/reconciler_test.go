package workflow

import (
	"testing"
	"time"

	"github.com/pawnest/adoptions_backend/models"
)

func TestResolveTerminalSlot(t *testing.T) {
	cases := []struct {
		name          string
		status        models.ApplicationStatus
		archiveExists bool
		want          slotResolution
	}{
		// rejected with an archive copy is a half-finished archival move;
		// the sweep finishes it by deleting the live row
		{"rejected with archive copy", models.ApplicationStatusRejected, true, resolveDeleteLiveRow},
		// rejected without an archive copy must NOT be deleted: the row is the
		// only surviving record of the application
		{"rejected without archive copy", models.ApplicationStatusRejected, false, resolveClearSlot},
		// withdrawn rows stay as the audit trail; only the slot is released
		{"withdrawn", models.ApplicationStatusWithdrawn, false, resolveClearSlot},
		{"withdrawn with stray archive row", models.ApplicationStatusWithdrawn, true, resolveClearSlot},
	}
	for _, tc := range cases {
		if got := resolveTerminalSlot(tc.status, tc.archiveExists); got != tc.want {
			t.Errorf("%s: resolveTerminalSlot(%s, %v) = %v, want %v",
				tc.name, tc.status, tc.archiveExists, got, tc.want)
		}
	}
}

func TestDispatcherRetryBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{5, 80 * time.Second},
		{8, 10 * time.Minute},
		{100, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := d.retryBackoff(tc.attempt); got != tc.want {
			t.Errorf("retryBackoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
