// Command ragmesh answers questions with a Coordinator agent that consults a
// knowledge base specialist and a web search specialist.
package main

func main() {
	Execute()
}
