package pyenv

import (
	"fmt"
	"strconv"
)

// ImportFailureExitCode is the exit status of the bootstrap program when
// the application object cannot be imported. It is chosen to stay clear of
// the statuses Python itself uses (1 for uncaught exceptions, 2 for usage
// errors).
const ImportFailureExitCode = 86

// AppSpec describes the application object to import and how to run it.
type AppSpec struct {
	// Module is the dotted module path, e.g. "disease_detection_app".
	Module string

	// Object is the attribute imported from Module, e.g. "app".
	Object string

	Host  string
	Port  int
	Debug bool
}

// BootstrapProgram returns the Python source that imports the application
// object and runs its built-in server. An ImportError raised by the import
// or later while the server runs (lazy imports, the reloader) exits with
// ImportFailureExitCode.
//
// The program is executed from a file rather than with "python -c" because
// the debug reloader re-executes sys.argv[0]. The working directory (the
// project base directory) is put first on sys.path so the application
// module resolves the same way it would from a script in that directory.
// Module and Object must already be validated identifiers.
func BootstrapProgram(spec AppSpec) string {
	debug := "False"
	if spec.Debug {
		debug = "True"
	}
	return fmt.Sprintf(`import os
import sys

sys.path.insert(0, os.getcwd())

try:
    from %[1]s import %[2]s as application
    application.run(host=%[4]s, port=%[5]d, debug=%[6]s)
except ImportError as exc:
    sys.stderr.write("cannot import %[2]s from %[1]s: %%s\n" %% exc)
    sys.exit(%[3]d)
except KeyboardInterrupt:
    sys.exit(0)
`, spec.Module, spec.Object, ImportFailureExitCode, strconv.Quote(spec.Host), spec.Port, debug)
}
