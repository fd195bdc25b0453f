// aiaudit records study sessions and scores how much of the work was shaped
// by the AI assistant.
package main

import (
	"fmt"
	"os"
	"time"
)

func main() {
	a := &app{now: time.Now}
	err := newAppCmd(a).Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
