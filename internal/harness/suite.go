package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/provcheck/internal/compare"
	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/provision"
	"github.com/roach88/provcheck/internal/report"
)

// Defaults applied when a suite leaves a field empty.
const (
	DefaultInventoryPath = "inventory/inventory.ini"
	DefaultReportPath    = "evaluate.json"
	DefaultMaximumMarks  = 1
)

// Suite is a declarative description of one verification run.
type Suite struct {
	// Name identifies the suite in logs and run history.
	Name string `yaml:"name" json:"name"`

	// Inventory locates the target host group.
	Inventory InventorySource `yaml:"inventory" json:"inventory"`

	// Provision is the optional orchestrator step run before any check.
	Provision ProvisionStep `yaml:"provision,omitempty" json:"provision,omitempty"`

	// Report is where the result file is written.
	Report ReportTarget `yaml:"report,omitempty" json:"report,omitempty"`

	// Workers bounds concurrent checks. Zero or one runs sequentially.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// HTTPTimeout bounds each HTTP assertion, e.g. "5s".
	HTTPTimeout string `yaml:"http_timeout,omitempty" json:"http_timeout,omitempty"`

	SSH SSHSettings `yaml:"ssh,omitempty" json:"ssh,omitempty"`

	// Checks are run in declaration order.
	Checks []CheckSpec `yaml:"checks" json:"checks"`

	// Dir is the directory of the suite file. Set by LoadSuite.
	Dir string `yaml:"-" json:"-"`

	// Digest identifies the suite file content. Set by LoadSuite.
	Digest string `yaml:"-" json:"-"`

	httpTimeout time.Duration
	dialTimeout time.Duration
	policy      provision.Policy
}

// InventorySource names the inventory file and host group.
type InventorySource struct {
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Group string `yaml:"group" json:"group"`

	// CheckID is the testid of the synthetic record written when the group
	// cannot be resolved.
	CheckID string `yaml:"check_id,omitempty" json:"check_id,omitempty"`
}

// ProvisionStep configures the one-shot orchestrator invocation.
type ProvisionStep struct {
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Policy is "proceed" (default) or "abort".
	Policy string `yaml:"policy,omitempty" json:"policy,omitempty"`
}

// ReportTarget configures the report file.
type ReportTarget struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// SSHSettings tunes the remote transport.
type SSHSettings struct {
	// DialTimeout bounds connection setup, e.g. "10s".
	DialTimeout string `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
}

// CheckSpec declares one weighted check.
type CheckSpec struct {
	// ID becomes the report testid. Unique within the suite.
	ID string `yaml:"id" json:"id"`

	// MaximumMarks is awarded when every assertion passes. Defaults to 1.
	MaximumMarks int `yaml:"maximum_marks,omitempty" json:"maximum_marks,omitempty"`

	// PassMessage replaces the assertion messages on success.
	PassMessage string `yaml:"pass_message,omitempty" json:"pass_message,omitempty"`

	// Assert lists the assertions, evaluated in order until one fails.
	Assert []Assertion `yaml:"assert" json:"assert"`
}

// Assertion is a single comparator invocation. Which fields apply depends
// on Kind.
type Assertion struct {
	// Kind selects the comparator; see the Kind constants.
	Kind string `yaml:"kind" json:"kind"`

	// Path is the remote path (exists, ownership, template).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Type restricts exists to "file" or "dir". Default "any".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Format is the stat format for ownership.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Expected is the wanted output (ownership, version).
	Expected string `yaml:"expected,omitempty" json:"expected,omitempty"`

	// Command prints the version (version).
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Match is exact, prefix or contains (version).
	Match string `yaml:"match,omitempty" json:"match,omitempty"`

	// Template is the local reference file (template).
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	// Unit, Active and Enabled describe a systemd unit (service).
	Unit    string `yaml:"unit,omitempty" json:"unit,omitempty"`
	Active  string `yaml:"active,omitempty" json:"active,omitempty"`
	Enabled string `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// URL may contain {host}, replaced by the resolved host (http).
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Status   int    `yaml:"status,omitempty" json:"status,omitempty"`
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Body     string `yaml:"body,omitempty" json:"body,omitempty"`

	// Packages lists packages that must be installed (packages).
	Packages []string `yaml:"packages,omitempty" json:"packages,omitempty"`

	// Versions maps package to expected version (package_versions).
	Versions map[string]string `yaml:"versions,omitempty" json:"versions,omitempty"`
}

// Assertion kind constants.
const (
	KindConnectivity    = "connectivity"
	KindExists          = "exists"
	KindOwnership       = "ownership"
	KindVersion         = "version"
	KindTemplate        = "template"
	KindService         = "service"
	KindHTTP            = "http"
	KindPackages        = "packages"
	KindPackageVersions = "package_versions"
)

// HTTPTimeoutDuration returns the parsed HTTP timeout.
func (s *Suite) HTTPTimeoutDuration() time.Duration {
	if s.httpTimeout == 0 {
		return compare.DefaultHTTPTimeout
	}
	return s.httpTimeout
}

// DialTimeoutDuration returns the parsed SSH dial timeout.
func (s *Suite) DialTimeoutDuration() time.Duration {
	if s.dialTimeout == 0 {
		return executor.DefaultDialTimeout
	}
	return s.dialTimeout
}

// Policy returns the parsed provisioning policy.
func (s *Suite) Policy() provision.Policy {
	if s.policy == "" {
		return provision.PolicyProceed
	}
	return s.policy
}

// ConfigurationCheckID returns the testid used when resolution fails.
func (s *Suite) ConfigurationCheckID() string {
	if s.Inventory.CheckID == "" {
		return report.DefaultConfigurationTestID
	}
	return s.Inventory.CheckID
}

// ProvisionEnv renders Provision.Env as sorted KEY=VALUE pairs.
func (s *Suite) ProvisionEnv() []string {
	env := make([]string, 0, len(s.Provision.Env))
	for k, v := range s.Provision.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// LoadSuite reads, decodes and validates a suite file. Files ending in
// .cue are evaluated with CUE; everything else is strict YAML.
// Relative paths inside the suite resolve against its directory.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite *Suite
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		suite, err = decodeCUE(path, data)
	} else {
		suite, err = decodeYAML(data)
	}
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve suite path: %w", err)
	}
	suite.Dir = filepath.Dir(abs)
	suite.Digest = digest(data)
	suite.resolvePaths()

	if err := validateSuite(suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return suite, nil
}

func decodeYAML(data []byte) (*Suite, error) {
	suite, err := decodeStrict(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return suite, nil
}

// decodeStrict decodes YAML (or JSON) and rejects unknown fields.
func decodeStrict(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "asserts:"
	if err := decoder.Decode(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

func decodeCUE(path string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE suite is not concrete: %w", err)
	}

	// Exported through JSON so CUE suites get the same field checking as
	// YAML. Hidden fields and definitions are not exported.
	data, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	suite, err := decodeStrict(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return suite, nil
}

// resolvePaths makes suite-relative paths absolute and applies path defaults.
func (s *Suite) resolvePaths() {
	if s.Inventory.Path == "" {
		s.Inventory.Path = DefaultInventoryPath
	}
	if s.Report.Path == "" {
		s.Report.Path = DefaultReportPath
	}

	s.Inventory.Path = s.resolve(s.Inventory.Path)
	s.Report.Path = s.resolve(s.Report.Path)
	if s.Provision.Dir == "" {
		s.Provision.Dir = s.Dir
	} else {
		s.Provision.Dir = s.resolve(s.Provision.Dir)
	}

	for i := range s.Checks {
		for j := range s.Checks[i].Assert {
			a := &s.Checks[i].Assert[j]
			if a.Kind == KindTemplate && a.Template != "" {
				a.Template = s.resolve(a.Template)
			}
		}
	}
}

// KeyPath resolves a credential path from the inventory against the
// provisioning directory, where the orchestrator reads the same inventory.
func (s *Suite) KeyPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Provision.Dir, p)
}

func (s *Suite) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// validateSuite checks required fields, applies defaults and parses
// durations and the provisioning policy.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Inventory.Group == "" {
		return fmt.Errorf("inventory.group is required")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if len(s.Checks) == 0 {
		return fmt.Errorf("checks list is required and must be non-empty")
	}

	var err error
	if s.HTTPTimeout != "" {
		if s.httpTimeout, err = parsePositiveDuration(s.HTTPTimeout); err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
	}
	if s.SSH.DialTimeout != "" {
		if s.dialTimeout, err = parsePositiveDuration(s.SSH.DialTimeout); err != nil {
			return fmt.Errorf("ssh.dial_timeout: %w", err)
		}
	}
	if s.policy, err = provision.ParsePolicy(s.Provision.Policy); err != nil {
		return fmt.Errorf("provision.policy: %w", err)
	}

	seen := make(map[string]int, len(s.Checks))
	for i := range s.Checks {
		c := &s.Checks[i]
		if c.ID == "" {
			return fmt.Errorf("checks[%d]: id is required", i)
		}
		if prev, dup := seen[c.ID]; dup {
			return fmt.Errorf("checks[%d]: duplicate id %q (first declared at checks[%d])", i, c.ID, prev)
		}
		seen[c.ID] = i

		if c.MaximumMarks < 0 {
			return fmt.Errorf("checks[%d]: maximum_marks must be positive", i)
		}
		if c.MaximumMarks == 0 {
			c.MaximumMarks = DefaultMaximumMarks
		}
		if len(c.Assert) == 0 {
			return fmt.Errorf("checks[%d]: assert list is required and must be non-empty", i)
		}
		for j := range c.Assert {
			if err := validateAssertion(&c.Assert[j]); err != nil {
				return fmt.Errorf("checks[%d].assert[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its kind.
func validateAssertion(a *Assertion) error {
	switch a.Kind {
	case "":
		return fmt.Errorf("kind is required")
	case KindConnectivity:
	case KindExists:
		if a.Path == "" {
			return fmt.Errorf("path is required for exists")
		}
		switch compare.PathKind(a.Type) {
		case "", compare.PathAny, compare.PathFile, compare.PathDir:
		default:
			return fmt.Errorf("unknown path type %q for exists", a.Type)
		}
	case KindOwnership:
		if a.Path == "" {
			return fmt.Errorf("path is required for ownership")
		}
		if a.Expected == "" {
			return fmt.Errorf("expected is required for ownership")
		}
	case KindVersion:
		if a.Command == "" {
			return fmt.Errorf("command is required for version")
		}
		if a.Expected == "" {
			return fmt.Errorf("expected is required for version")
		}
		if _, err := compare.ParseMatch(a.Match); err != nil {
			return err
		}
	case KindTemplate:
		if a.Template == "" {
			return fmt.Errorf("template is required for template")
		}
		if a.Path == "" {
			return fmt.Errorf("path is required for template")
		}
	case KindService:
		if a.Unit == "" {
			return fmt.Errorf("unit is required for service")
		}
	case KindHTTP:
		if a.URL == "" {
			return fmt.Errorf("url is required for http")
		}
		if a.Status < 0 || a.Status > 599 {
			return fmt.Errorf("status %d out of range for http", a.Status)
		}
		if a.Contains != "" && a.Body != "" {
			return fmt.Errorf("contains and body are mutually exclusive for http")
		}
	case KindPackages:
		if len(a.Packages) == 0 {
			return fmt.Errorf("packages list is required for packages")
		}
	case KindPackageVersions:
		if len(a.Versions) == 0 {
			return fmt.Errorf("versions map is required for package_versions")
		}
	default:
		return fmt.Errorf("unknown assertion kind %q", a.Kind)
	}
	return nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
