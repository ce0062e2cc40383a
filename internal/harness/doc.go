// Package harness runs stackvm programs under test and checks their outcomes.
//
// A Test bundles a program source, an optional kernel, program inputs and a
// debug flag. Each assertion recompiles and reruns the test, so a Test can be
// shared between assertions and between goroutines.
//
// # Assertions
//
// Every assertion comes in two forms: a Check* method returning an error and
// an Expect* method that fails the calling test:
//
//	test := harness.BuildTest("begin push.5 push.7 add end")
//	test.ExpectStack(t, []uint64{12})
//
//	test = harness.NewTest("begin push.1 push.0 div end", false)
//	test.ExpectError(t, harness.ExecutionError("division by zero"))
//
// PropExpectStack is the non-aborting variant for property tests driven by
// rapid:
//
//	rapid.Check(t, func(rt *rapid.T) {
//	    a := rapid.Uint64Range(0, harness.U32Bound-1).Draw(rt, "a")
//	    test := harness.BuildTest("begin u32assert end", a)
//	    if err := test.PropExpectStack([]uint64{a}); err != nil {
//	        rt.Fatal(err)
//	    }
//	})
//
// # Scenario Format
//
// Scenarios declare a test and its expectations in YAML or CUE:
//
//	name: add_two_numbers
//	description: "push two values and add them"
//	source: |
//	  begin push.5 push.7 add end
//	inputs:
//	  stack: [1, 2]
//	expect:
//	  stack: [12, 2, 1]
//	  prove:
//	    public_inputs: [1, 2]
//
// Run executes a scenario and collects every failed expectation in the
// Result. RunWithGolden additionally compares the per-cycle trace against a
// golden file in testdata/golden.
package harness
