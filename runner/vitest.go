package runner

import "github.com/polytest/polytest/types"

// vitestStrategy drives Vitest. Its json reporter emits the Jest document
// shape, so parsing is shared with jestStrategy.
type vitestStrategy struct{}

func (s *vitestStrategy) Framework() types.TestFramework {
	return types.FrameworkVitest
}

func (s *vitestStrategy) BuildCommand(req types.TestRunRequest) Command {
	args := []string{"vitest", "run", "--reporter=json"}
	if req.TestPattern != "" {
		args = append(args, "-t", req.TestPattern)
	}
	if req.TestFile != "" {
		args = append(args, req.TestFile)
	}
	return Command{Bin: "npx", Args: args}
}

func (s *vitestStrategy) ExplainsExit(code int) bool {
	return code == 1
}

func (s *vitestStrategy) Parse(output []byte) (ParseOutput, error) {
	if out, ok := parseJestJSON(output); ok {
		return out, nil
	}
	return parseJSTextOutput(output, "vitest")
}
