package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// incidentNamePattern names one post-mortem incident file per
// emergency-stop event, timestamped so a sequence of restarts across a
// print session never overwrites an earlier incident's record.
const incidentNamePattern = "estop-%Y%m%dT%H%M%S.log"

// WriteIncidentReport writes a one-shot post-mortem file for the first
// latched violation under dir, named with the current time via
// github.com/lestrrat-go/strftime (the same library the teacher uses for
// timestamped export file naming). It is a no-op, returning an error
// without writing anything, if no violation has been latched yet.
func (m *Monitor) WriteIncidentReport(dir string, now time.Time) (string, error) {
	reason, ok := m.Reason()
	if !ok {
		return "", fmt.Errorf("safety: no emergency stop latched, nothing to report")
	}

	f, err := strftime.New(incidentNamePattern)
	if err != nil {
		return "", fmt.Errorf("safety: build incident filename pattern: %w", err)
	}
	path := filepath.Join(dir, f.FormatString(now))

	contents := fmt.Sprintf("emergency stop latched\nkind: %s\ndetail: %s\ntime: %s\n",
		reason.Kind, reason.Error(), now.Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("safety: write incident report: %w", err)
	}
	return path, nil
}
