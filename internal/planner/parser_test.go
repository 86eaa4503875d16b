package planner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/calyptra/redgraph/internal/dag"
)

func TestParsePlanBasic(t *testing.T) {
	completion := `1. http_probe(target="https://example.com")
2. header_scan(target=$1.final_url)  [depends: 1]
3. join()`

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2 (join discarded)", len(tasks))
	}

	t1 := tasks[0]
	if t1.ID != "1" || t1.ToolName != "http_probe" {
		t.Errorf("t1 = %s/%s", t1.ID, t1.ToolName)
	}
	if t1.Arguments["target"] != "https://example.com" {
		t.Errorf("t1 target = %v", t1.Arguments["target"])
	}
	if len(t1.DependsOn) != 0 {
		t.Errorf("t1 deps = %v", t1.DependsOn)
	}

	t2 := tasks[1]
	if t2.Arguments["target"] != "$1.final_url" {
		t.Errorf("reference must stay opaque, got %v", t2.Arguments["target"])
	}
	if !reflect.DeepEqual(t2.DependsOn, []string{"1"}) {
		t.Errorf("t2 deps = %v", t2.DependsOn)
	}
}

func TestParsePlanStripsFencesAndProse(t *testing.T) {
	completion := "Here is the plan:\n```\n1. dns_lookup(host=\"example.com\")\n```\nThat should cover it."

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ToolName != "dns_lookup" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestParsePlanValueTypes(t *testing.T) {
	completion := `1. scan(target="example.com", ports=443, deep=true, note=plain, extra=null)`

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	args := tasks[0].Arguments
	if args["ports"] != float64(443) {
		t.Errorf("ports = %v (%T)", args["ports"], args["ports"])
	}
	if args["deep"] != true {
		t.Errorf("deep = %v", args["deep"])
	}
	if args["note"] != "plain" {
		t.Errorf("note = %v", args["note"])
	}
	if v, present := args["extra"]; !present || v != nil {
		t.Errorf("extra = %v present=%v", v, present)
	}
}

func TestParsePlanQuotedCommaAndEscapes(t *testing.T) {
	completion := `1. echo(value="a, b \"c\"", label="x")`

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	args := tasks[0].Arguments
	if args["value"] != `a, b "c"` {
		t.Errorf("value = %q", args["value"])
	}
	if args["label"] != "x" {
		t.Errorf("label = %v", args["label"])
	}
}

func TestParsePlanInfersDependenciesFromReferences(t *testing.T) {
	completion := `1. http_probe(target="https://example.com")
2. header_scan(target=$1.final_url)`

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(tasks[1].DependsOn, []string{"1"}) {
		t.Errorf("deps = %v, want inferred [1]", tasks[1].DependsOn)
	}
}

func TestParsePlanExplicitAndImpliedDepsMerge(t *testing.T) {
	completion := `1. http_probe(target="https://a.test")
2. http_probe(target="https://b.test")
3. report(a=$1.status, b=$2.status)  [depends: 1, 2]`

	tasks, err := ParsePlan(completion)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(tasks[2].DependsOn, []string{"1", "2"}) {
		t.Errorf("deps = %v", tasks[2].DependsOn)
	}
}

func TestParsePlanNoTasksIsError(t *testing.T) {
	for _, completion := range []string{
		"I cannot build a plan for that objective.",
		"join()",
		"   ",
	} {
		_, err := ParsePlan(completion)
		var perr *dag.PlanParsingError
		if !errors.As(err, &perr) {
			t.Errorf("%q: err = %v, want PlanParsingError", completion, err)
		}
	}
}

func TestParsePlanDuplicateIDIsError(t *testing.T) {
	completion := "1. echo(value=\"a\")\n1. echo(value=\"b\")"

	_, err := ParsePlan(completion)
	var perr *dag.PlanParsingError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PlanParsingError", err)
	}
}
