package policy

import (
	"errors"
	"sync"
	"testing"

	"SignalGate/internal/domain/models"
)

func TestStoreSwitchAndActive(t *testing.T) {
	s, err := NewStore(nil, models.PolicyModerate)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := s.Active().Name; got != models.PolicyModerate {
		t.Fatalf("initial policy %q", got)
	}

	p, err := s.Switch("aggressive")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if p.Name != models.PolicyAggressive || s.Active().Name != models.PolicyAggressive {
		t.Fatalf("switch not applied: %q", s.Active().Name)
	}
}

func TestStoreUnknownNameLeavesActiveUntouched(t *testing.T) {
	s, err := NewStore(nil, models.PolicyConservative)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Switch("yolo"); !errors.Is(err, ErrUnknownName) {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
	if got := s.Active().Name; got != models.PolicyConservative {
		t.Fatalf("active changed after failed switch: %q", got)
	}
}

func TestStoreRejectsInvalidProfileAtBoot(t *testing.T) {
	bad := Presets()
	p := bad[models.PolicyModerate]
	p.MinNotional = 600 // above max
	bad[models.PolicyModerate] = p

	if _, err := NewStore(bad, models.PolicyModerate); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestStoreConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	s, err := NewStore(nil, models.PolicyConservative)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := s.Active()
				if Validate(p) != nil {
					t.Errorf("torn policy observed: %+v", p)
					return
				}
			}
		}()
	}
	names := []string{"conservative", "moderate", "aggressive"}
	for i := 0; i < 300; i++ {
		if _, err := s.Switch(names[i%len(names)]); err != nil {
			t.Fatalf("switch: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
