package gitodb

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"github.com/solstice-oss/gitodb/ginternals"
	"github.com/solstice-oss/gitodb/ginternals/object"
)

// DefaultAbbrevLength is the number of leading hex characters used to
// render a fingerprint when no exact tag matches
const DefaultAbbrevLength = 7

// describeQueueEntry is one pending node in the describe BFS
type describeQueueEntry struct {
	oid   ginternals.Oid
	depth int
}

// tagTargets builds a map of target fingerprint to tag name by
// scanning every refs/tags/* reference. Annotated tags are peeled to
// the commit they point at; lightweight tags (a ref pointing straight
// at a commit) are recorded as-is.
func (r *Repository) tagTargets() (map[ginternals.Oid]string, error) {
	targets := map[ginternals.Oid]string{}
	err := r.backend.WalkReferences(func(ref *ginternals.Reference) error {
		if !strings.HasPrefix(ref.Name(), "refs/tags/") {
			return nil
		}
		name := ginternals.LocalTagShortName(ref.Name())

		o, err := r.backend.Object(ref.Target())
		if err != nil {
			return xerrors.Errorf("could not load tag target %s: %w", ref.Target().String(), err)
		}

		switch o.Type() {
		case object.TypeTag:
			tag, err := o.AsTag()
			if err != nil {
				return xerrors.Errorf("could not decode tag %s: %w", name, err)
			}
			targets[tag.Target()] = name
		case object.TypeCommit:
			targets[o.ID()] = name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// Describe finds the closest reachable annotated (or lightweight) tag
// from the given commit, via breadth-first search through its parents.
//
// If the commit itself is tagged, the tag name is returned as-is. If a
// tag is found N commits away, the result is "<tag>-N-g<abbrev>" where
// abbrev is the first abbrevLen hex characters of the commit's
// fingerprint. If no tag is reachable, the abbreviated fingerprint
// alone is returned. abbrevLen defaults to DefaultAbbrevLength when <= 0.
func (r *Repository) Describe(commitID ginternals.Oid, abbrevLen int) (string, error) {
	if abbrevLen <= 0 {
		abbrevLen = DefaultAbbrevLength
	}

	targets, err := r.tagTargets()
	if err != nil {
		return "", xerrors.Errorf("could not collect tags: %w", err)
	}

	abbrev := commitID.String()[:abbrevLen]

	queue := []describeQueueEntry{{oid: commitID, depth: 0}}
	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		if name, ok := targets[entry.oid]; ok {
			if entry.depth == 0 {
				return name, nil
			}
			return fmt.Sprintf("%s-%d-g%s", name, entry.depth, abbrev), nil
		}

		o, err := r.backend.Object(entry.oid)
		if err != nil {
			return "", xerrors.Errorf("could not load commit %s: %w", entry.oid.String(), err)
		}
		commit, err := o.AsCommit()
		if err != nil {
			return "", xerrors.Errorf("could not decode commit %s: %w", entry.oid.String(), err)
		}
		for _, parentID := range commit.ParentIDs() {
			queue = append(queue, describeQueueEntry{oid: parentID, depth: entry.depth + 1})
		}
	}

	return abbrev, nil
}
