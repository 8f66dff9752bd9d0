package compact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Persistence caps. The record is written as one item with a hard size
// ceiling, so every unbounded collection gets a front-truncation cap and
// long text fields get character caps.
const (
	maxRecordBytes   = 400_000
	maxRiskEntries   = 200
	maxSections      = 30
	maxEvidencePer   = 10
	maxEvidenceChars = 800
	maxSummaryChars  = 50_000
	maxWarnings      = 50
)

// OverflowError reports a record that exceeds the size ceiling even after
// all caps were applied.
type OverflowError struct {
	Size int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("compacted record is %d bytes, exceeds %d byte ceiling", e.Size, maxRecordBytes)
}

// Record is a persistence-ready analysis result: capped, decimal-exact and
// deterministically encoded.
type Record struct {
	value Value
	size  int
}

// MarshalJSON encodes the record with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) { return r.value.MarshalJSON() }

// Size is the encoded size in bytes.
func (r Record) Size() int { return r.size }

// Compact shapes an analysis result for persistence. It is total over
// well-formed input: caps are applied instead of failing, floats become
// canonical decimal strings, and compacting an already compacted record
// changes nothing. The only error conditions are a non-encodable input and
// a record that still exceeds the size ceiling after capping.
func Compact(result any) (Record, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Record{}, fmt.Errorf("encoding result: %w", err)
	}
	v, err := FromJSON(data)
	if err != nil {
		return Record{}, err
	}

	v = transform(v, "")

	encoded, err := v.MarshalJSON()
	if err != nil {
		return Record{}, fmt.Errorf("encoding compacted record: %w", err)
	}
	if len(encoded) > maxRecordBytes {
		return Record{}, &OverflowError{Size: len(encoded)}
	}
	return Record{value: v, size: len(encoded)}, nil
}

// transform walks the value depth-first, applying the field caps keyed by
// the JSON name the value sits under and converting every float to its
// decimal string form.
func transform(v Value, key string) Value {
	switch v.Kind {
	case KindNumber:
		return normalizeNumber(v)
	case KindList:
		v.List = capList(v.List, key)
		for i := range v.List {
			v.List[i] = transform(v.List[i], key)
		}
		if key == "riskRegister" {
			for i := range v.List {
				v.List[i] = stripEvidence(v.List[i])
			}
		}
		if key == "sections" {
			for i := range v.List {
				v.List[i] = capSectionEvidence(v.List[i])
			}
		}
		return v
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = transform(e, k)
		}
		v.Map = m
		return v
	case KindString:
		if key == "summary" || key == "aiSummary" {
			v.Str = capString(v.Str, maxSummaryChars)
		}
		return v
	default:
		return v
	}
}

func capList(list []Value, key string) []Value {
	var limit int
	switch key {
	case "riskRegister":
		limit = maxRiskEntries
	case "sections":
		limit = maxSections
	case "warnings":
		limit = maxWarnings
	default:
		return list
	}
	if len(list) > limit {
		return list[:limit]
	}
	return list
}

// stripEvidence removes the nested evidence list from a register entry;
// the evidence remains reconstructable from the sections blob, so storing
// it twice would only burn record budget.
func stripEvidence(entry Value) Value {
	if entry.Kind != KindMap {
		return entry
	}
	delete(entry.Map, "evidence")
	return entry
}

// capSectionEvidence bounds a section's evidence list and each snippet's
// text, keeping charEnd consistent with the text actually kept.
func capSectionEvidence(section Value) Value {
	if section.Kind != KindMap {
		return section
	}
	ev, ok := section.Map["evidence"]
	if !ok || ev.Kind != KindList {
		return section
	}
	if len(ev.List) > maxEvidencePer {
		ev.List = ev.List[:maxEvidencePer]
	}
	for i := range ev.List {
		ev.List[i] = capEvidenceText(ev.List[i])
	}
	section.Map["evidence"] = ev
	return section
}

func capEvidenceText(item Value) Value {
	if item.Kind != KindMap {
		return item
	}
	text, ok := item.Map["text"]
	if !ok || text.Kind != KindString || len(text.Str) <= maxEvidenceChars {
		return item
	}
	text.Str = capString(text.Str, maxEvidenceChars)
	item.Map["text"] = text
	// Keep doc[charStart:charEnd] == text after truncation.
	if start, ok := item.Map["charStart"]; ok && start.Kind == KindNumber {
		if s, err := strconv.Atoi(start.Num); err == nil {
			item.Map["charEnd"] = NumberValue(strconv.Itoa(s + len(text.Str)))
		}
	}
	return item
}

// capString truncates s to at most limit bytes, backing off to a rune
// boundary so capped text is never left with a split multibyte character.
func capString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// normalizeNumber rewrites float-looking numbers as decimal strings and
// leaves integers alone.
func normalizeNumber(v Value) Value {
	if !strings.ContainsAny(v.Num, ".eE") {
		return v
	}
	f, err := strconv.ParseFloat(v.Num, 64)
	if err != nil {
		return v
	}
	return StringValue(DecimalString(f))
}
