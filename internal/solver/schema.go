package solver

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// responseSchema is the contract of POST /solve responses.
// Structs are open: fields the solver adds later are ignored.
const responseSchema = `
status!:          string
objective_value?: number | null
assignments!: [...{
	day!:   string
	shift!: string
	nurse!: string
}]
understaffed!: [...{
	day!:     string
	shift!:   string
	missing!: int
}]
nurse_stats!: [...{
	nurse!:           string
	assigned_shifts!: int
	overtime!:        int
	nights!:          int
	satisfaction!:    int & >=0 & <=100
}]
details?: _
`

// schema validates response bodies against responseSchema.
// A cue.Context is not safe for concurrent use, hence mu.
type schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

func newSchema() (*schema, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(responseSchema, cue.Filename("solve_response.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &schema{ctx: ctx, def: def}, nil
}

// validate checks that body is JSON conforming to the schema.
func (s *schema) validate(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(body, cue.Filename("response.json"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
