package main

import "tools.zach/dev/tekkencord/internal/paths"

// DataPaths aliases [paths.DataDir] so main code can reference path helpers
// without qualifying the internal package name.
type DataPaths = paths.DataDir
