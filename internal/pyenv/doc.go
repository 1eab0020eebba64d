// Package pyenv drives the Python interpreter that hosts the crop-disease
// web application.
//
// The launcher never links against Python. Everything goes through the
// interpreter executable via os/exec:
//   - Version asks the interpreter for sys.version_info
//   - InstallRequirements runs "python -m pip install -r <manifest>"
//   - Serve writes a small bootstrap program that imports the application
//     object and calls its run method, then executes it
//
// An import failure inside the bootstrap exits with ImportFailureExitCode,
// which Serve translates into model.ErrAppImport.
package pyenv
