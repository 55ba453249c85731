// Package language normalizes language codes used by the transcription
// backends and by audio stream selection.
//
// Container tags carry ISO 639-2 codes ("jpn"), whisperx and the OpenAI API
// expect ISO 639-1 ("ja"), and users type either or a full name. Everything
// is routed through golang.org/x/text/language so the three forms compare
// equal.
package language
