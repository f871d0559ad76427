// Package gemini implements the remote transcription backend on top of the
// Google Gen AI SDK.
//
// A Factory caches one SDK client per region and hands them to the
// transcription orchestrator as transcribe.Backend values. In Gemini API mode
// chunks are staged through the Files API; Vertex AI has no Files API, so
// chunk bytes are sent inline with the request instead.
package gemini
