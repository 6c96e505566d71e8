// Package testing provides test utilities, fakes, and builders shared across
// the test suites:
//   - FakeRunner: scripted subprocess runner with call recording
//   - MockProvider: testify mock of the virtualization provider contract
//   - ConfigBuilder: fluent builder for build configurations
//
// Usage:
//
//	runner := testing.NewFakeRunner()
//	runner.Stub("vmrun", "list", `Total running VMs: 0`)
//
//	cfg := testing.NewConfigBuilder().
//	    WithBackend("vmware").
//	    Build()
package testing
