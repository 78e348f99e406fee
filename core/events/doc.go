// Package events defines the typed events that flow through the voice
// pipeline and out to the client.
//
// Every stage passes through the events it does not own, so a consumer of the
// composed pipeline sees one time-ordered feed of all kinds:
//
//   - TranscriptPartial (transcript_partial): provisional transcription of the
//     audio accumulated so far; may be followed by more partials or a final.
//   - TranscriptFinal (transcript_final): transcription treated as a complete
//     user utterance; triggers one agent turn.
//   - AgentTextDelta (agent_delta): append-only fragment of the agent's reply,
//     in emission order. Concatenating all deltas of a turn gives the reply.
//   - SynthesizedAudio (synthesized_audio): chunk of synthesized speech for a
//     prefix of the agent's reply.
//   - PipelineError (error): non-fatal, stage-local failure notice. It never
//     terminates the stream.
package events
