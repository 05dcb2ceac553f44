package api

import (
	"strings"
	"testing"
	"time"

	"github.com/dehost-labs/dehost/internal/serverdb"
)

func TestRunHousekeeping(t *testing.T) {
	srv, store := newTestServerWithConfig(t, func(c *Config) {
		c.CodeRetention = time.Hour
		c.PairingEventRetention = 90 * 24 * time.Hour
	})

	now := time.Now().Truncate(time.Second)
	store.SetClock(func() time.Time { return now.Add(-3 * time.Hour) })
	stale, err := store.RegisterCode("100001")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.RegisterCode("100002"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.VerifyCode("100002", "u1"); err != nil {
		t.Fatal(err)
	}
	store.SetClock(nil)
	if _, err := store.RegisterCode("100003"); err != nil {
		t.Fatal(err)
	}

	stats, err := srv.RunHousekeeping()
	if err != nil {
		t.Fatalf("housekeeping: %v", err)
	}
	if stats.CodesExpired != 1 || stats.CodesPruned != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, err := store.CodeStatus("100001"); err != serverdb.ErrNotFound {
		t.Errorf("stale code should be pruned, got %v", err)
	}
	if ok, err := store.CodeStatus("100002"); err != nil || !ok {
		t.Errorf("verified code must survive housekeeping: %v %v", ok, err)
	}
	if _, err := store.CodeStatus("100003"); err != nil {
		t.Errorf("fresh code must survive housekeeping: %v", err)
	}

	events, err := store.ListPairingEvents(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].EventType != serverdb.PairingEventExpired {
		t.Fatalf("expected an expired event for the pruned code, got %+v", events)
	}
	if !strings.Contains(events[0].Metadata, "expires_at") {
		t.Errorf("expected expiry in metadata, got %q", events[0].Metadata)
	}
}

// Under a simulated clock the expired events and the prune must agree on
// which codes are past retention.
func TestRunHousekeepingUsesStoreClock(t *testing.T) {
	srv, store := newTestServerWithConfig(t, func(c *Config) { c.CodeRetention = time.Hour })

	start := time.Now().Truncate(time.Second)
	store.SetClock(func() time.Time { return start })
	vc, err := store.RegisterCode("100004")
	if err != nil {
		t.Fatal(err)
	}
	store.SetClock(func() time.Time { return start.Add(2 * time.Hour) })

	stats, err := srv.RunHousekeeping()
	if err != nil {
		t.Fatalf("housekeeping: %v", err)
	}
	if stats.CodesExpired != 1 || stats.CodesPruned != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	events, _ := store.ListPairingEvents(vc.ID)
	if len(events) != 1 || events[0].EventType != serverdb.PairingEventExpired {
		t.Fatalf("expected an expired event, got %+v", events)
	}
}
