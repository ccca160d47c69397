package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provcheck/internal/compare"
	"github.com/roach88/provcheck/internal/executor"
	"github.com/roach88/provcheck/internal/provision"
	"github.com/roach88/provcheck/internal/report"
)

// writeSuite writes content to dir/name and returns the path.
func writeSuite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const webSuite = `
name: webserver
inventory:
  group: web
provision:
  command: ansible-playbook -i inventory/inventory.ini site.yml
  env:
    ANSIBLE_HOST_KEY_CHECKING: "False"
    ANSIBLE_FORCE_COLOR: "0"
workers: 4
http_timeout: 2s
ssh:
  dial_timeout: 3s
checks:
  - id: SSH Connectivity
    assert:
      - kind: connectivity
  - id: Nginx Configuration
    maximum_marks: 2
    assert:
      - kind: template
        template: templates/nginx.conf
        path: /etc/nginx/nginx.conf
      - kind: service
        unit: nginx
`

func TestLoadSuite_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	suite, err := LoadSuite(writeSuite(t, dir, "suite.yaml", webSuite))
	require.NoError(t, err)

	resolvedDir, err := filepath.Abs(dir)
	require.NoError(t, err)

	assert.Equal(t, "webserver", suite.Name)
	assert.Equal(t, resolvedDir, suite.Dir)
	assert.Equal(t, filepath.Join(resolvedDir, DefaultInventoryPath), suite.Inventory.Path)
	assert.Equal(t, filepath.Join(resolvedDir, DefaultReportPath), suite.Report.Path)
	assert.Equal(t, resolvedDir, suite.Provision.Dir)
	assert.Equal(t, filepath.Join(resolvedDir, "templates/nginx.conf"), suite.Checks[1].Assert[0].Template)
	assert.Equal(t, "/etc/nginx/nginx.conf", suite.Checks[1].Assert[0].Path)

	assert.Equal(t, 1, suite.Checks[0].MaximumMarks, "maximum_marks defaults to 1")
	assert.Equal(t, 2, suite.Checks[1].MaximumMarks)
	assert.Equal(t, 4, suite.Workers)
	assert.Equal(t, 2*time.Second, suite.HTTPTimeoutDuration())
	assert.Equal(t, 3*time.Second, suite.DialTimeoutDuration())
	assert.Equal(t, provision.PolicyProceed, suite.Policy())
	assert.Equal(t, report.DefaultConfigurationTestID, suite.ConfigurationCheckID())
	assert.Equal(t, []string{"ANSIBLE_FORCE_COLOR=0", "ANSIBLE_HOST_KEY_CHECKING=False"}, suite.ProvisionEnv())
}

func TestLoadSuite_Defaults(t *testing.T) {
	dir := t.TempDir()
	suite, err := LoadSuite(writeSuite(t, dir, "suite.yml", `
name: minimal
inventory:
  group: db
  check_id: Inventory Check
  path: /etc/ansible/hosts
report:
  path: out/result.json
provision:
  dir: playbooks
  policy: abort
checks:
  - id: only
    assert:
      - kind: connectivity
`))
	require.NoError(t, err)

	assert.Equal(t, compare.DefaultHTTPTimeout, suite.HTTPTimeoutDuration())
	assert.Equal(t, executor.DefaultDialTimeout, suite.DialTimeoutDuration())
	assert.Equal(t, provision.PolicyAbort, suite.Policy())
	assert.Equal(t, "Inventory Check", suite.ConfigurationCheckID())
	assert.Equal(t, "/etc/ansible/hosts", suite.Inventory.Path, "absolute paths are kept")
	assert.Equal(t, filepath.Join(suite.Dir, "out/result.json"), suite.Report.Path)
	assert.Equal(t, filepath.Join(suite.Dir, "playbooks"), suite.Provision.Dir)
	assert.Empty(t, suite.ProvisionEnv())
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, err := LoadSuite("/nonexistent/suite.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}

func TestLoadSuite_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSuite(writeSuite(t, dir, "suite.yaml", `
name: typo
inventory:
  group: web
checks:
  - id: a
    asserts:
      - kind: connectivity
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "asserts")
}

func TestLoadSuite_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "inventory: {group: web}\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "name is required",
		},
		{
			name:    "missing group",
			content: "name: s\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "inventory.group is required",
		},
		{
			name:    "no checks",
			content: "name: s\ninventory: {group: web}\nchecks: []",
			wantErr: "checks list is required",
		},
		{
			name:    "missing id",
			content: "name: s\ninventory: {group: web}\nchecks: [{assert: [{kind: connectivity}]}]",
			wantErr: "checks[0]: id is required",
		},
		{
			name:    "duplicate id",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: connectivity}]}, {id: a, assert: [{kind: connectivity}]}]",
			wantErr: `checks[1]: duplicate id "a"`,
		},
		{
			name:    "negative marks",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, maximum_marks: -1, assert: [{kind: connectivity}]}]",
			wantErr: "checks[0]: maximum_marks must be positive",
		},
		{
			name:    "empty assert",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: []}]",
			wantErr: "checks[0]: assert list is required",
		},
		{
			name:    "unknown kind",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: ping}]}]",
			wantErr: `checks[0].assert[0]: unknown assertion kind "ping"`,
		},
		{
			name:    "exists without path",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: exists}]}]",
			wantErr: "path is required for exists",
		},
		{
			name:    "exists bad type",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: exists, path: /x, type: socket}]}]",
			wantErr: `unknown path type "socket"`,
		},
		{
			name:    "ownership without expected",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: ownership, path: /x}]}]",
			wantErr: "expected is required for ownership",
		},
		{
			name:    "version bad match",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: version, command: node -v, expected: v22, match: regex}]}]",
			wantErr: `unknown match mode "regex"`,
		},
		{
			name:    "template without path",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: template, template: t.conf}]}]",
			wantErr: "path is required for template",
		},
		{
			name:    "service without unit",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: service}]}]",
			wantErr: "unit is required for service",
		},
		{
			name:    "http contains and body",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: http, url: 'http://{host}/', contains: a, body: b}]}]",
			wantErr: "mutually exclusive",
		},
		{
			name:    "packages empty",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: packages}]}]",
			wantErr: "packages list is required",
		},
		{
			name:    "package versions empty",
			content: "name: s\ninventory: {group: web}\nchecks: [{id: a, assert: [{kind: package_versions}]}]",
			wantErr: "versions map is required",
		},
		{
			name:    "bad timeout",
			content: "name: s\ninventory: {group: web}\nhttp_timeout: soon\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "http_timeout",
		},
		{
			name:    "non-positive dial timeout",
			content: "name: s\ninventory: {group: web}\nssh: {dial_timeout: 0s}\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "ssh.dial_timeout: must be positive",
		},
		{
			name:    "bad policy",
			content: "name: s\ninventory: {group: web}\nprovision: {policy: retry}\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "provision.policy",
		},
		{
			name:    "negative workers",
			content: "name: s\ninventory: {group: web}\nworkers: -2\nchecks: [{id: a, assert: [{kind: connectivity}]}]",
			wantErr: "workers must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := LoadSuite(writeSuite(t, dir, "suite.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid suite")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSuite_CUE(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.cue", `
name: "database"
inventory: group: "db"
workers: 2
checks: [
	{
		id: "MongoDB Service"
		maximum_marks: 3
		assert: [{kind: "service", unit: "mongod"}]
	},
	{
		id: "MongoDB Version"
		assert: [{
			kind:     "version"
			command:  "mongod --version | head -n1"
			expected: "db version v7."
			match:    "prefix"
		}]
	},
]
`)

	suite, err := LoadSuite(path)
	require.NoError(t, err)

	assert.Equal(t, "database", suite.Name)
	assert.Equal(t, "db", suite.Inventory.Group)
	assert.Equal(t, 2, suite.Workers)
	require.Len(t, suite.Checks, 2)
	assert.Equal(t, 3, suite.Checks[0].MaximumMarks)
	assert.Equal(t, "mongod", suite.Checks[0].Assert[0].Unit)
	assert.Equal(t, KindService, suite.Checks[0].Assert[0].Kind)
	assert.Equal(t, 1, suite.Checks[1].MaximumMarks)
	assert.Equal(t, "prefix", suite.Checks[1].Assert[0].Match)
}

func TestLoadSuite_CUENotConcrete(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.cue", `
name: string
inventory: group: "db"
checks: [{id: "a", assert: [{kind: "connectivity"}]}]
`)

	_, err := LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not concrete")
}

func TestLoadSuite_CUEUnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.cue", `
name: "database"
inventory: group: "db"
checks: [{id: "a", asserts: [{kind: "connectivity"}]}]
`)

	_, err := LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode CUE")
	assert.Contains(t, err.Error(), "asserts")
}

func TestLoadSuite_CUEHiddenFieldsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.cue", `
_service: {kind: "service", unit: "mongod"}
name: "database"
inventory: group: "db"
checks: [{id: "MongoDB Service", assert: [_service]}]
`)

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	require.Len(t, suite.Checks, 1)
	assert.Equal(t, "mongod", suite.Checks[0].Assert[0].Unit)
}

func TestLoadSuite_CUESyntaxError(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSuite(writeSuite(t, dir, "suite.cue", `name: "x" checks: [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile CUE")
}

func TestLoadSuite_Digest(t *testing.T) {
	dir := t.TempDir()
	a, err := LoadSuite(writeSuite(t, dir, "a.yaml", webSuite))
	require.NoError(t, err)
	b, err := LoadSuite(writeSuite(t, t.TempDir(), "b.yaml", webSuite))
	require.NoError(t, err)
	assert.Len(t, a.Digest, 64)
	assert.Equal(t, a.Digest, b.Digest, "digest depends on content, not location")

	d, err := LoadSuite(writeSuite(t, dir, "d.yaml", webSuite+"# trailing comment\n"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, d.Digest)
}

func TestSuite_KeyPath(t *testing.T) {
	dir := t.TempDir()
	suite, err := LoadSuite(writeSuite(t, dir, "suite.yaml", webSuite))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(suite.Dir, "inventory", "ansible.pem"), suite.KeyPath("inventory/ansible.pem"))
	assert.Equal(t, "/etc/keys/web.pem", suite.KeyPath("/etc/keys/web.pem"))
	assert.Equal(t, "", suite.KeyPath(""))

	suite.Provision.Dir = filepath.Join(dir, "ansible")
	assert.Equal(t, filepath.Join(dir, "ansible", "keys", "web.pem"), suite.KeyPath("keys/web.pem"),
		"keys follow the provisioning directory")
}
