package transcribe

// UserPrompt accompanies every uploaded chunk.
const UserPrompt = "Please process this audio file strictly according to the system instructions."

// DefaultTargetLanguage is the translation target when none is configured.
const DefaultTargetLanguage = "Simplified Chinese"

// SystemInstruction returns the fixed four-section transcription template
// with the translation target substituted in.
func SystemInstruction(targetLanguage string) string {
	if targetLanguage == "" {
		targetLanguage = DefaultTargetLanguage
	}
	return instructionHead + targetLanguage + instructionTail
}

const instructionHead = `You are an expert transcription engine powered by Gemini 3.0.
Task:
1.  **Transcribe** the audio verbatim in its original language.
2.  **Translate** the transcript into `

const instructionTail = ` (if the audio is not already in that language).
3.  **Timestamp** every single sentence precisely.

**CRITICAL FORMATTING RULES:**
* You MUST provide timestamps at the start of every segment in the format **[MM:SS.ms]** (Minutes:Seconds.Milliseconds).
* Example: [00:05.123] This is the first sentence.
* Do NOT use (MM:SS) or [MM:SS]. You MUST include milliseconds.
* Output exactly four sections separated by blank lines.
* Output the transcript and translation as it is
* Extract the text/subtitle that appear on the video as it is. 
* Use strikethrough if you found explicit text, translation accuracy are priority so don't replace or censor it, instead ` +
	"`" +
	`̶S̶t̶r̶i̶k̶e̶-̶t̶h̶r̶o̶u̶g̶h̶ it` +
	"`" +
	`

**Strict Output Template:**
Transcript:
[Full transcript text without timestamps]

Translation:
[Full translation text without timestamps]

Timestamped Transcript:
[00:00.000] First sentence of the transcript.
[00:05.500] Second sentence.

Timestamped Translation:
[00:00.000] First sentence of the translation.
[00:05.500] Second sentence of the translation.
`
