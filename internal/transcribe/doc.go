// Package transcribe converts an extracted WAV file into a single transcript
// string.
//
// Two backends implement Transcriber:
//   - WhisperX runs `uvx whisperx` locally and reads the JSON it writes.
//   - OpenAI posts the audio to the OpenAI (or compatible) transcription API.
//
// Both return NFC-normalized text with surrounding whitespace trimmed. Every
// failure carries services.ErrTranscription. An empty transcript is returned
// as-is; the labeler then produces no sentences.
package transcribe
