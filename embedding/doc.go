// Package embedding turns text into dense vectors.
//
// A Provider is any text-to-vector function with a fixed output dimension.
// Remote providers (OpenAI, Google, Ollama) are wrapped by New into a stack
// that retries transient failures, throttles request rate, splits input into
// concurrent batches and checks that every returned vector has the expected
// dimension. HashEmbedder is a deterministic local provider for tests and
// offline use.
package embedding
