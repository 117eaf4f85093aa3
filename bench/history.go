package bench

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/omartijn/ozo/logger"
)

// History persists completed run reports in a local pebble store so that
// consecutive runs of the same scenario can be compared.
type History struct {
	db *pebble.DB
}

// OpenHistory opens (or creates) the run-history store in dir.
func OpenHistory(dir string) (*History, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the store.
func (h *History) Close() error {
	return h.db.Close()
}

func historyKey(rep *Report) []byte {
	return []byte(fmt.Sprintf("run/%s/%020d/%s", rep.Scenario, rep.FinishedAt.UnixNano(), rep.RunID))
}

// Put stores a report under its scenario and finish time.
func (h *History) Put(rep *Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return h.db.Set(historyKey(rep), data, pebble.Sync)
}

// Last returns the most recent stored report for the scenario, or nil
// when none exists.
func (h *History) Last(scenario string) (*Report, error) {
	iter, err := h.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("run/" + scenario + "/"),
		UpperBound: []byte("run/" + scenario + "0"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, nil
	}
	var rep Report
	if err := json.Unmarshal(iter.Value(), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// recordHistory compares the finished run with the previous one for the
// same scenario and then stores it.
func recordHistory(dir string, rep *Report) error {
	h, err := OpenHistory(dir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(); cerr != nil && !errors.Is(cerr, pebble.ErrClosed) {
			logger.Warn("run history close failed", "error", cerr.Error())
		}
	}()

	prev, err := h.Last(rep.Scenario)
	if err != nil {
		return err
	}
	if prev != nil && prev.RequestsSec > 0 {
		delta := (rep.RequestsSec - prev.RequestsSec) / prev.RequestsSec * 100
		logger.Info("previous run comparison",
			"scenario", rep.Scenario,
			"previous_rps", fmt.Sprintf("%.1f", prev.RequestsSec),
			"current_rps", fmt.Sprintf("%.1f", rep.RequestsSec),
			"delta_percent", fmt.Sprintf("%+.1f", delta))
	}
	return h.Put(rep)
}
