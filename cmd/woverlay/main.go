// The woverlay command runs the Wrale Overlay notification client
package main

import "github.com/wrale/wrale-overlay/internal/woverlay/cmd"

func main() {
	cmd.Execute()
}
