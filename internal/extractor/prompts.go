package extractor

// Prompt templates for type-specific extraction. All prompts demand bare JSON
// so the layered decoder can parse responses without markdown stripping in
// the common case.

const charterPrompt = `You are analyzing a Charter Document (Certificate of Incorporation or Bylaws).

DOCUMENT TEXT:
---
%s
---

Extract the following information:
- company_name: The full legal name of the company
- incorporation_date: Date of incorporation (YYYY-MM-DD format)
- authorized_shares: Total authorized shares (common + all preferred classes)
- share_classes: List of all authorized share classes (e.g., ["Common Stock", "Series A Preferred"])

If any field cannot be found, use null.

Respond ONLY with valid JSON:
{"company_name": "...", "incorporation_date": "...", "authorized_shares": 0, "share_classes": []}`

const stockPrompt = `You are analyzing a Stock Purchase Agreement or stock issuance document.

DOCUMENT TEXT:
---
%s
---

Extract ALL equity issuances mentioned in this document. For each issuance:
- shareholder: Full name of the person or entity receiving shares
- shares: Number of shares issued (integer)
- share_class: Type of stock (e.g., "Common Stock", "Series A Preferred")
- price_per_share: Price per share (float, or null if not mentioned)
- date: Effective date of issuance (YYYY-MM-DD format)
- source_quote: Short verbatim quote evidencing the issuance

Respond ONLY with valid JSON (array of issuances):
[{"shareholder": "...", "shares": 0, "share_class": "...", "price_per_share": 0.0, "date": "...", "source_quote": "..."}]

If no issuances found, return an empty array: []`

const safePrompt = `You are analyzing a SAFE (Simple Agreement for Future Equity) document.

DOCUMENT TEXT:
---
%s
---

Extract the following:
- investor: Name of the investor
- amount: Investment amount in dollars (integer)
- valuation_cap: Valuation cap in dollars (integer, or null)
- discount_rate: Discount rate as a percentage (float, or null)
- date: Effective date of the SAFE (YYYY-MM-DD format)

Respond ONLY with valid JSON:
{"investor": "...", "amount": 0, "valuation_cap": null, "discount_rate": null, "date": "..."}`

const convertibleNotePrompt = `You are analyzing a Convertible Promissory Note.

DOCUMENT TEXT:
---
%s
---

Extract the following:
- investor: Name of the lender/investor
- principal: Principal amount in dollars (integer)
- interest_rate: Annual interest rate as a percentage (float, or null)
- maturity_date: Maturity date (YYYY-MM-DD format, or null)
- valuation_cap: Conversion valuation cap in dollars (integer, or null)
- discount_rate: Conversion discount as a percentage (float, or null)
- date: Effective date of the note (YYYY-MM-DD format)

If any field cannot be found, use null.

Respond ONLY with valid JSON:
{"investor": "...", "principal": 0, "interest_rate": null, "maturity_date": null, "valuation_cap": null, "discount_rate": null, "date": "..."}`

const minutesPrompt = `You are analyzing Board or Shareholder Minutes/Consents.

DOCUMENT TEXT:
---
%s
---

Extract:
- meeting_date: Date of the meeting or consent (YYYY-MM-DD format)
- meeting_type: "Board Meeting", "Shareholder Meeting", or "Written Consent"
- key_decisions: List of key decisions made (array of strings, max 3-5 items)

Respond ONLY with valid JSON:
{"meeting_date": "...", "meeting_type": "...", "key_decisions": []}`

const optionGrantPrompt = `You are analyzing an Option Grant Agreement or RSU Agreement.

DOCUMENT TEXT:
---
%s
---

Extract:
- recipient: Name of the person receiving the options/RSUs
- shares: Number of shares subject to the grant (integer)
- strike_price: Exercise/strike price per share (float, or null for RSUs)
- vesting_schedule: Brief description of vesting (e.g., "4 years, 1 year cliff")
- grant_date: Date of the grant (YYYY-MM-DD format)

Respond ONLY with valid JSON:
{"recipient": "...", "shares": 0, "strike_price": null, "vesting_schedule": "...", "grant_date": "..."}`

const repurchasePrompt = `You are analyzing a Share Repurchase Agreement.

DOCUMENT TEXT:
---
%s
---

Extract:
- shareholder: Name of the person or entity selling shares back to the company
- shares: Number of shares repurchased (integer)
- share_class: Type of stock repurchased (e.g., "Common Stock")
- price_per_share: Repurchase price per share (float, or null)
- date: Effective date of the repurchase (YYYY-MM-DD format)

Respond ONLY with valid JSON:
{"shareholder": "...", "shares": 0, "share_class": "...", "price_per_share": null, "date": "..."}`

const companyNamePrompt = `Extract the company's legal name from these charter documents.

CHARTER DOCUMENTS:
---
%s
---

Look for phrases like:
- "The name of the corporation is..."
- "Certificate of Incorporation of..."
- As used in header/footer

Respond with ONLY the company name (no JSON, just the text):`
