package service

import (
	"sort"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/metrics"
)

const (
	// DefaultDiffTimeout bounds a single diff computation.
	DefaultDiffTimeout = time.Second
	// DefaultPreviewContextChars is the context kept around changes in previews.
	DefaultPreviewContextChars = 150

	diffEditCost = 4
)

// DiffPreview is a windowed view of the text after a set of changes.
type DiffPreview struct {
	HasChanges  bool                   `json:"has_changes"`
	PreviewText string                 `json:"preview_text"`
	Operations  []domain.DiffOperation `json:"operations"`
	WindowStart int                    `json:"window_start"`
	WindowEnd   int                    `json:"window_end"`
}

// DiffEngine computes, applies and previews character-level edits. All
// offsets are character (rune) offsets.
type DiffEngine struct {
	timeout time.Duration
}

// NewDiffEngine creates a DiffEngine. A non-positive timeout uses DefaultDiffTimeout.
func NewDiffEngine(timeout time.Duration) *DiffEngine {
	if timeout <= 0 {
		timeout = DefaultDiffTimeout
	}
	return &DiffEngine{timeout: timeout}
}

var defaultDiffEngine = NewDiffEngine(DefaultDiffTimeout)

// ComputeDiff computes operations transforming before into after.
func ComputeDiff(before, after string) []domain.DiffOperation {
	return defaultDiffEngine.Compute(before, after)
}

// ApplyDiff applies ops to original.
func ApplyDiff(original string, ops []domain.DiffOperation) (string, error) {
	return defaultDiffEngine.Apply(original, ops)
}

// PreviewDiff builds a windowed preview of the changes from before to after.
func PreviewDiff(before, after string, contextChars int) DiffPreview {
	return defaultDiffEngine.Preview(before, after, contextChars)
}

// Compute returns operations whose offsets index before. A delete directly
// followed by an insert at the same position is merged into a replace. When
// the time budget runs out the result is coarser but still correct.
func (e *DiffEngine) Compute(before, after string) []domain.DiffOperation {
	start := time.Now()
	defer func() {
		metrics.DiffComputeDuration.Observe(time.Since(start).Seconds())
	}()

	if before == after {
		return []domain.DiffOperation{}
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = e.timeout
	dmp.DiffEditCost = diffEditCost

	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	ops := make([]domain.DiffOperation, 0, len(diffs))
	cursor := 0
	for _, d := range diffs {
		n := len([]rune(d.Text))
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			cursor += n
		case diffmatchpatch.DiffDelete:
			ops = append(ops, domain.Delete(cursor, cursor+n))
			cursor += n
		case diffmatchpatch.DiffInsert:
			if k := len(ops) - 1; k >= 0 && ops[k].Kind == domain.DiffOpDelete && ops[k].End == cursor {
				ops[k] = domain.Replace(ops[k].Start, ops[k].End, d.Text)
				continue
			}
			ops = append(ops, domain.Insert(cursor, d.Text))
		}
	}
	return ops
}

// Apply validates every operation against original and then applies them
// from the end of the text backwards. Nothing is applied if any operation is
// out of bounds, malformed, or overlaps another.
func (e *DiffEngine) Apply(original string, ops []domain.DiffOperation) (string, error) {
	if len(ops) == 0 {
		return original, nil
	}

	runes := []rune(original)
	if err := validateOperations(ops, len(runes)); err != nil {
		return "", err
	}

	order := make([]int, len(ops))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oa, ob := ops[order[a]], ops[order[b]]
		if oa.Start != ob.Start {
			return oa.Start > ob.Start
		}
		if oa.End != ob.End {
			return oa.End > ob.End
		}
		return order[a] > order[b]
	})

	for _, i := range order {
		op := ops[i]
		text := []rune(op.Text)
		if op.Kind == domain.DiffOpDelete {
			text = nil
		}
		spliced := make([]rune, 0, len(runes)-(op.End-op.Start)+len(text))
		spliced = append(spliced, runes[:op.Start]...)
		spliced = append(spliced, text...)
		spliced = append(spliced, runes[op.End:]...)
		runes = spliced
	}
	return string(runes), nil
}

func validateOperations(ops []domain.DiffOperation, length int) error {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return domain.NewDiffApplicationError("operation %d: %v", i, err)
		}
		if op.End > length {
			return domain.NewDiffApplicationError("operation %d: range [%d, %d) exceeds text length %d", i, op.Start, op.End, length)
		}
	}

	// Ranged operations overlap if they share a character. An insert
	// conflicts only when it falls strictly inside a ranged operation.
	for a := 0; a < len(ops); a++ {
		for b := a + 1; b < len(ops); b++ {
			if opsOverlap(ops[a], ops[b]) {
				return domain.NewDiffApplicationError("operations %d and %d overlap", a, b)
			}
		}
	}
	return nil
}

func opsOverlap(a, b domain.DiffOperation) bool {
	aInsert, bInsert := a.Start == a.End, b.Start == b.End
	switch {
	case aInsert && bInsert:
		return false
	case aInsert:
		return a.Start > b.Start && a.Start < b.End
	case bInsert:
		return b.Start > a.Start && b.Start < a.End
	default:
		return a.Start < b.End && b.Start < a.End
	}
}

// Preview returns the after-text inside a window spanning all operations
// plus contextChars on each side, with operations rebased to the window.
func (e *DiffEngine) Preview(before, after string, contextChars int) DiffPreview {
	if contextChars < 0 {
		contextChars = DefaultPreviewContextChars
	}
	ops := e.Compute(before, after)
	if len(ops) == 0 {
		b := []rune(before)
		preview := before
		if len(b) > 2*contextChars {
			preview = string(b[:2*contextChars]) + "..."
		}
		return DiffPreview{
			HasChanges:  false,
			PreviewText: preview,
			Operations:  []domain.DiffOperation{},
		}
	}

	minStart, maxEnd := ops[0].Start, ops[0].End
	for _, op := range ops[1:] {
		minStart = min(minStart, op.Start)
		maxEnd = max(maxEnd, op.End)
	}

	a := []rune(after)
	windowStart := max(0, minStart-contextChars)
	windowEnd := min(len(a), maxEnd+contextChars)
	if windowStart > windowEnd {
		windowStart = windowEnd
	}

	local := make([]domain.DiffOperation, 0, len(ops))
	for _, op := range ops {
		if op.Start >= windowStart && op.Start <= windowEnd {
			local = append(local, op.Shift(-windowStart))
		}
	}

	return DiffPreview{
		HasChanges:  true,
		PreviewText: string(a[windowStart:windowEnd]),
		Operations:  local,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
}
