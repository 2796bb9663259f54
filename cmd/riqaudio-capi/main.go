// Command riqaudio-capi builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libRIQAudio.so ./cmd/riqaudio-capi
package main

func main() {}
