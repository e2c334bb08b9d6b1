// Command fabricsim runs interconnect simulations described by YAML
// topology files.
package main

func main() {
	Execute()
}
