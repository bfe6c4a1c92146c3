package answer

// decomposePrompt asks the model to break a question into independent
// sub-questions, one retrieval each. The model must answer with a bare
// JSON array of strings.
const decomposePrompt = `You are helping answer questions about a technical service manual.
Break the user's question into the smallest set of independent sub-questions
that each need their own lookup in the manual. A simple question stays as a
single sub-question. Never invent sub-questions the user did not ask about.

Respond with ONLY a JSON array of strings, no markdown fencing, no prose.

Question: %s`

// answerPrompt builds the final answer from retrieved manual pages. The
// retrieved context is rendered page by page; the model must answer from
// that context alone and cite page numbers.
const answerPrompt = `You are a technical assistant answering questions about a service manual.
Answer the question using ONLY the retrieved manual pages below. When the
pages do not contain the answer, say so plainly instead of guessing.

Rules:
- Cite the page number for every fact you state, like (page 42).
- When a table or figure on a page is relevant, mention it by its label.
- Keep the answer concise and procedural where the manual is procedural.
- Preserve all safety warnings from the source pages verbatim.

Retrieved manual pages:
%s

Question: %s`
