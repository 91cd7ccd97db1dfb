// Command modelkit builds and runs inference pipelines from the command
// line.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/kbukum/modelkit/hub/gcs"
	_ "github.com/kbukum/modelkit/hub/modelhub"
	_ "github.com/kbukum/modelkit/hub/s3"
	_ "github.com/kbukum/modelkit/processor/image"
	_ "github.com/kbukum/modelkit/processor/text"
	_ "github.com/kbukum/modelkit/units/echo"
	_ "github.com/kbukum/modelkit/units/imagestats"
)

func main() {
	a := &app{}
	if err := execute(context.Background(), a, newCLI(a)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
