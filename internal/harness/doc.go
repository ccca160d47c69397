// Package harness loads declarative check suites and compiles them into
// engine checks.
//
// # Suite Format
//
// Suites are YAML (or CUE, by .cue extension) files with the following
// structure:
//
//	name: webserver
//	inventory:
//	  path: inventory/inventory.ini
//	  group: web
//	provision:
//	  command: ansible-playbook -i inventory/inventory.ini site.yml
//	  policy: proceed
//	report:
//	  path: evaluate.json
//	workers: 4
//	http_timeout: 5s
//	checks:
//	  - id: SSH Connectivity
//	    assert:
//	      - kind: connectivity
//	  - id: Nginx Configuration
//	    maximum_marks: 2
//	    pass_message: nginx.conf matches the template
//	    assert:
//	      - kind: template
//	        template: templates/nginx.conf
//	        path: /etc/nginx/nginx.conf
//	  - id: Home Page
//	    assert:
//	      - kind: http
//	        url: http://{host}/
//	        contains: Welcome
//
// Relative inventory, template, report and provision paths resolve against
// the directory containing the suite file.
//
// # Assertion Kinds
//
//   - connectivity: an echo round-trips over SSH
//   - exists: path exists (type: any, file or dir)
//   - ownership: stat output (format, default "%U:%G %a") equals expected
//   - version: command output matches expected (match: exact, prefix, contains)
//   - template: remote file content equals a local reference, line by line
//   - service: unit is in the active and enabled states
//   - http: GET url returns status (default 200) with contains or body
//   - packages: every listed package is installed
//   - package_versions: each package is installed at the given version
//
// A check passes only if all of its assertions pass. The first failing
// assertion's message becomes the check's message.
package harness
