package models

const (
	// Gemini text-embedding-004 compatible dimensionality.
	VectorSize = 768

	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultMaxChunks    = 5
	DefaultDailyLimit   = 50
	DefaultCacheTTLSecs = 3600

	ContextSourceLabel = "[Document: %s, Page: %d]"

	// NoDocumentsAnswer is returned without calling the chat model when
	// retrieval comes back empty.
	NoDocumentsAnswer = "I could not find any relevant documents to answer your question. Please check that the condominium documents have been uploaded."
)

var (
	AnswerPromptTemplate = `You are the virtual assistant of a condominium. Your job is to answer questions about the internal regulations and condominium documents.

DOCUMENT CONTEXT:
%s

USER QUESTION:
%s

INSTRUCTIONS:
1. Answer ONLY from the context above
2. If the information is not in the context, say "I could not find that information in the available documents"
3. Always cite the document and page the information came from
4. Be clear, objective and polite
5. Use plain language

ANSWER:`
)
