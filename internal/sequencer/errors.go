package sequencer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/model"
)

// ErrDuplicateGuid is wrapped by DuplicateGuidError.
var ErrDuplicateGuid = errors.New("duplicate project guid")

// DuplicateGuidError reports non-SDK projects that share a GUID.
type DuplicateGuidError struct {
	GUID     string
	Projects []string
}

func (e *DuplicateGuidError) Error() string {
	return fmt.Sprintf("duplicate project guid %s: %s", e.GUID, strings.Join(e.Projects, ", "))
}

func (e *DuplicateGuidError) Unwrap() error { return ErrDuplicateGuid }

// CheckDuplicateGuids fails when two non-SDK projects share a GUID. SDK-style
// projects are exempt. The error names the lowest duplicated GUID.
func CheckDuplicateGuids(projects []*model.ConfiguredProject) error {
	byGUID := make(map[string][]string)
	for _, p := range projects {
		if p.IsSdkStyle || strings.TrimSpace(p.ProjectGUID) == "" {
			continue
		}
		g := strings.ToLower(strings.Trim(strings.TrimSpace(p.ProjectGUID), "{}"))
		byGUID[g] = append(byGUID[g], p.FullPath)
	}
	var dups []string
	for g, paths := range byGUID {
		if len(paths) > 1 {
			dups = append(dups, g)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	return &DuplicateGuidError{GUID: "{" + dups[0] + "}", Projects: byGUID[dups[0]]}
}
