package domain

import (
	"strings"

	"github.com/google/uuid"
)

// MergeMode says what happens to a stored field when the same contact arrives again.
type MergeMode int

const (
	// Never keeps the stored value.
	Never MergeMode = iota
	// FillIfEmpty writes the incoming value only when nothing is stored.
	FillIfEmpty
	// Overwrite replaces the stored value whenever an incoming value is present.
	Overwrite
)

func (m MergeMode) String() string {
	switch m {
	case FillIfEmpty:
		return "fill-if-empty"
	case Overwrite:
		return "overwrite"
	default:
		return "never"
	}
}

// Field names a lead attribute subject to merging.
type Field string

const (
	FieldName     Field = "name"
	FieldOrigin   Field = "origin"
	FieldPhone    Field = "phone"
	FieldPhoneKey Field = "phoneKey"
	FieldEmail    Field = "email"
	FieldBranchID Field = "branchId"
	FieldNote     Field = "note"
)

// MergePolicy maps each field to its merge mode. Fields missing from the
// table are treated as Never.
type MergePolicy map[Field]MergeMode

// DefaultMergePolicy keeps the first-seen phone and branch, refreshes the
// display name and origin, and never lets ingestion touch the internal note.
// Overwrite applies only to present values: a contact arriving without a name
// keeps the stored one instead of being reset to DefaultLeadName.
var DefaultMergePolicy = MergePolicy{
	FieldName:     Overwrite,
	FieldOrigin:   Overwrite,
	FieldPhone:    FillIfEmpty,
	FieldPhoneKey: FillIfEmpty,
	FieldEmail:    FillIfEmpty,
	FieldBranchID: FillIfEmpty,
	FieldNote:     Never,
}

// Incoming is the canonical shape of an inbound contact after extraction and
// normalization. Nil or blank values mean "not provided".
type Incoming struct {
	Name     string
	Origin   *string
	Phone    *string
	PhoneKey *string
	Email    *string
	BranchID *uuid.UUID
	Note     *string
}

// Mode returns the merge mode for field.
func (p MergePolicy) Mode(field Field) MergeMode {
	if mode, ok := p[field]; ok {
		return mode
	}
	return Never
}

// Apply merges in onto lead and returns the fields that changed.
// Queue placement is not part of the merge; see Route.
func (p MergePolicy) Apply(lead *Lead, in Incoming) []Field {
	var changed []Field

	if name := strings.TrimSpace(in.Name); name != "" && name != lead.Name {
		mode := p.Mode(FieldName)
		if mode == Overwrite || (mode == FillIfEmpty && strings.TrimSpace(lead.Name) == "") {
			lead.Name = name
			changed = append(changed, FieldName)
		}
	}

	stringFields := []struct {
		field Field
		dst   **string
		src   *string
	}{
		{FieldOrigin, &lead.Origin, in.Origin},
		{FieldPhone, &lead.Phone, in.Phone},
		{FieldPhoneKey, &lead.PhoneKey, in.PhoneKey},
		{FieldEmail, &lead.Email, in.Email},
		{FieldNote, &lead.Note, in.Note},
	}
	for _, f := range stringFields {
		if mergeString(p.Mode(f.field), f.dst, f.src) {
			changed = append(changed, f.field)
		}
	}

	if in.BranchID != nil {
		mode := p.Mode(FieldBranchID)
		if (mode == Overwrite && (lead.BranchID == nil || *lead.BranchID != *in.BranchID)) ||
			(mode == FillIfEmpty && lead.BranchID == nil) {
			branch := *in.BranchID
			lead.BranchID = &branch
			changed = append(changed, FieldBranchID)
		}
	}

	return changed
}

func mergeString(mode MergeMode, dst **string, src *string) bool {
	if src == nil || strings.TrimSpace(*src) == "" {
		return false
	}
	value := strings.TrimSpace(*src)
	current := *dst
	empty := current == nil || strings.TrimSpace(*current) == ""

	switch mode {
	case Overwrite:
		if !empty && *current == value {
			return false
		}
	case FillIfEmpty:
		if !empty {
			return false
		}
	default:
		return false
	}

	*dst = &value
	return true
}
