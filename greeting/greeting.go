package greeting

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/pvlbzn/aws-stack-application/config"
)

const DefaultStackName = "unknown stack"

// Greeting identifies the host and deployment stack. It is computed once at
// startup and never changes afterwards.
type Greeting struct {
	Hostname  string
	StackName string
}

func New(hostname, stackName string) Greeting {
	if stackName == "" {
		stackName = DefaultStackName
	}
	return Greeting{Hostname: hostname, StackName: stackName}
}

// Resolve reads the machine hostname and the stack name from v.
func Resolve(v *viper.Viper) (Greeting, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Greeting{}, fmt.Errorf("resolving hostname: %w", err)
	}
	return New(hostname, v.GetString(config.StackName)), nil
}

// Plain is the body served by the plaintext responder.
func (g Greeting) Plain() string {
	return fmt.Sprintf("Hey from %s in %s\n", g.Hostname, g.StackName)
}

// Secure is the body served by the TLS responder.
func (g Greeting) Secure() string {
	return fmt.Sprintf("HTTPS hey from %s in %s\n", g.Hostname, g.StackName)
}
