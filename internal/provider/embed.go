package provider

import _ "embed"

//go:embed logos/library.png
var libraryLogo []byte
