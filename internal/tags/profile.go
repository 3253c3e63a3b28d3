package tags

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Profile error codes, stable for scripting against CLI output.
const (
	ErrCodeUnreadable = "E001" // profile file unreadable
	ErrCodeParse      = "E002" // CUE parse/build failure
	ErrCodeSchema     = "E003" // schema violation
	ErrCodeDuplicate  = "E004" // duplicate tag value
)

// ProfileError is a structured profile loading failure.
type ProfileError struct {
	Code    string
	Message string
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// profileSchema constrains planner profiles. Tag names follow the NodeTag
// convention; values are the generated enum values of the target version.
const profileSchema = `
#Tag: {
	value: int & >=0
	name:  string & =~"^T_[A-Za-z0-9_]+$"
}

#Join: {
	value: int & >=0
	name:  string & !=""
}

profile: {
	name: string & !=""
	tags: [...#Tag] & [_, ...]
	joins?: [...#Join]
}
`

// LoadProfile builds a Table from a CUE planner profile file.
//
// A profile names a planner version and lists its tag values, optionally
// overriding join kind names:
//
//	profile: {
//		name: "postgres-16"
//		tags: [{value: 402, name: "T_SeqScan"}, ...]
//	}
func LoadProfile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ProfileError{Code: ErrCodeUnreadable, Message: fmt.Sprintf("reading profile: %v", err)}
	}
	return parseProfile(path, data)
}

func parseProfile(path string, data []byte) (*Table, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(profileSchema)
	if err := schema.Err(); err != nil {
		return nil, &ProfileError{Code: ErrCodeParse, Message: fmt.Sprintf("compiling profile schema: %v", err)}
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &ProfileError{Code: ErrCodeParse, Message: fmt.Sprintf("parsing profile: %v", err)}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("validating profile: %v", err)}
	}

	names := make(map[uint32]string)
	tagsVal := unified.LookupPath(cue.ParsePath("profile.tags"))
	iter, err := tagsVal.List()
	if err != nil {
		return nil, &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("iterating tags: %v", err)}
	}
	for iter.Next() {
		v, name, err := entryFields(iter.Value())
		if err != nil {
			return nil, err
		}
		if existing, ok := names[uint32(v)]; ok {
			return nil, &ProfileError{
				Code:    ErrCodeDuplicate,
				Message: fmt.Sprintf("tag value %d defined as both %s and %s", v, existing, name),
			}
		}
		names[uint32(v)] = name
	}

	var joins map[int]string
	joinsVal := unified.LookupPath(cue.ParsePath("profile.joins"))
	if joinsVal.Exists() {
		joins = make(map[int]string)
		jIter, err := joinsVal.List()
		if err != nil {
			return nil, &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("iterating joins: %v", err)}
		}
		for jIter.Next() {
			v, name, err := entryFields(jIter.Value())
			if err != nil {
				return nil, err
			}
			joins[int(v)] = name
		}
	}

	return newTable(names, joins), nil
}

func entryFields(v cue.Value) (int64, string, error) {
	value, err := v.LookupPath(cue.ParsePath("value")).Int64()
	if err != nil {
		return 0, "", &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("reading entry value: %v", err)}
	}
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return 0, "", &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("reading entry name: %v", err)}
	}
	return value, name, nil
}

// ProfileName extracts the profile's declared name without building a Table.
func ProfileName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ProfileError{Code: ErrCodeUnreadable, Message: fmt.Sprintf("reading profile: %v", err)}
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return "", &ProfileError{Code: ErrCodeParse, Message: fmt.Sprintf("parsing profile: %v", err)}
	}
	name, err := value.LookupPath(cue.ParsePath("profile.name")).String()
	if err != nil {
		return "", &ProfileError{Code: ErrCodeSchema, Message: fmt.Sprintf("reading profile name: %v", err)}
	}
	return name, nil
}
