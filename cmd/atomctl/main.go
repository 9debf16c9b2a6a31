// Command atomctl runs catalog maintenance against the configured store.
package main

func main() {
	Execute()
}
