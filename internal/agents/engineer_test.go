package agents

import (
	"context"
	"strings"
	"testing"

	"dreamcard/internal/blueprint"
	"dreamcard/internal/llm"
	"dreamcard/internal/tester"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "import React from 'react';", "import React from 'react';"},
		{"fenced", "```tsx\nconst x = 1;\n```", "const x = 1;"},
		{"fenced no lang", "```\nconst x = 1;\n```", "const x = 1;"},
		{"language label", "typescript const x = 1;", "const x = 1;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tester.Eq(t, StripCodeFences(tc.in), tc.want)
		})
	}
}

func TestRepairCodeSVGAttributes(t *testing.T) {
	in := `import React from 'react';
import { motion } from 'framer-motion';
const App = () => <svg stroke-width="2" stroke-linecap="round" fill-rule="evenodd" />;
export default App;`

	out := RepairCode(in)
	tester.Contains(t, out, `strokeWidth="2"`)
	tester.Contains(t, out, `strokeLinecap="round"`)
	tester.Contains(t, out, `fillRule="evenodd"`)
	tester.False(t, strings.Contains(out, "stroke-width"))
}

func TestRepairCodeHTMLComments(t *testing.T) {
	in := `import React from 'react';
import { motion } from 'framer-motion';
const App = () => <div><!-- greeting block --></div>;
export default App;`

	out := RepairCode(in)
	tester.Contains(t, out, "{/* greeting block */}")
	tester.False(t, strings.Contains(out, "<!--"))
}

func TestRepairCodeStripsStylesheetImports(t *testing.T) {
	in := `import React from 'react';
import { motion } from 'framer-motion';
import './App.css';
import "./styles.css";
const App = () => null;
export default App;`

	out := RepairCode(in)
	tester.False(t, strings.Contains(out, ".css"))
}

func TestRepairCodeEnsuresImports(t *testing.T) {
	out := RepairCode("const App = () => null;\nexport default App;")
	tester.Contains(t, out, "import React")
	tester.Contains(t, out, "framer-motion")
}

func TestRepairCodeAppendsMissingDefaultExport(t *testing.T) {
	out := RepairCode(`import React from 'react';
import { motion } from 'framer-motion';
function CardApp() { return null; }`)
	tester.Contains(t, out, "export default CardApp;")

	// Already exported: nothing appended.
	exported := RepairCode(`import React from 'react';
import { motion } from 'framer-motion';
const App = () => null;
export default App;`)
	tester.Eq(t, strings.Count(exported, "export default"), 1)
}

func TestGenerateRecordsPreviousCode(t *testing.T) {
	fake := llm.NewFakeClient().Respond("engineer", "```tsx\nconst App = () => null;\nexport default App;\n```")
	e := &Engineer{LLM: fake}

	art, err := e.Generate(context.Background(), blueprint.Blueprint{Heading: "For Danielle"}, "old code", nil)
	tester.NoErr(t, err)
	tester.Eq(t, art.PreviousCode, "old code")
	tester.Contains(t, art.Code, "export default App;")
	tester.False(t, strings.Contains(art.Code, "```"))
	tester.Eq(t, art.Blueprint.Heading, "For Danielle")
}

func TestGenerateInjectsAvoidErrors(t *testing.T) {
	fake := llm.NewFakeClient().Respond("engineer", "const App = () => null;\nexport default App;")
	e := &Engineer{LLM: fake}

	_, err := e.Generate(context.Background(), blueprint.Blueprint{}, "", []string{"Cannot read property 'map' of undefined"})
	tester.NoErr(t, err)

	calls := fake.Calls()
	tester.Eq(t, len(calls), 1)
	tester.Contains(t, calls[0].Prompt, "Do not repeat these previously observed errors")
	tester.Contains(t, calls[0].Prompt, "Cannot read property")
}

func TestGeneratePropagatesModelFailure(t *testing.T) {
	e := &Engineer{LLM: llm.Disabled{}}
	_, err := e.Generate(context.Background(), blueprint.Blueprint{}, "", nil)
	tester.ErrIs(t, err, llm.ErrNotConfigured)
}
