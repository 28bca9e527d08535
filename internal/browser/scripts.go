package browser

// Scripts evaluated in the editor page. Each one is a function expression
// taking at most one argument and returning a JSON string.

// actionResolver finds the first interactive element whose label matches,
// trying in order: a button by accessible name, a link by accessible name, a
// <button> containing the text, an <a> containing it. Hidden elements only
// count when the enclosing script sets visibleOnly to false.
const actionResolver = `
	const norm = (s) => String(s == null ? "" : s).replace(/\s+/g, " ").trim().toLowerCase();
	const want = norm(label);
	const visible = (el) => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	const roleOf = (el) => {
		const explicit = el.getAttribute("role");
		if (explicit) return explicit.toLowerCase();
		const tag = el.tagName.toLowerCase();
		if (tag === "button") return "button";
		if (tag === "input" && /^(button|submit|reset)$/i.test(el.type || "")) return "button";
		if (tag === "a" && el.hasAttribute("href")) return "link";
		return "";
	};
	const nameOf = (el) => norm(el.getAttribute("aria-label") || (el.tagName === "INPUT" ? el.value : el.textContent));
	const candidates = [...document.querySelectorAll("button, a, input, [role]")].filter((el) => !visibleOnly || visible(el));
	const strategies = [
		(el) => roleOf(el) === "button" && nameOf(el) === want,
		(el) => roleOf(el) === "link" && nameOf(el) === want,
		(el) => el.tagName === "BUTTON" && norm(el.textContent).includes(want),
		(el) => el.tagName === "A" && norm(el.textContent).includes(want),
	];
	let found = null;
	for (const match of strategies) {
		found = candidates.find(match) || null;
		if (found) break;
	}
`

// markActionScript tags the resolved element with a one-shot token so the
// driver can click it natively.
const markActionScript = `({ label, token }) => {
	const visibleOnly = true;` + actionResolver + `
	document.querySelectorAll("[data-onrbuild-target]").forEach((el) => el.removeAttribute("data-onrbuild-target"));
	if (!found) return JSON.stringify({ found: false });
	found.setAttribute("data-onrbuild-target", token);
	return JSON.stringify({ found: true, tag: found.tagName.toLowerCase() });
}`

// dataHrefScript reports the PNG data URI behind the labeled element, read
// from the element itself when it is an anchor, else from its first
// descendant anchor. The save link is often hidden, so it is not filtered
// on visibility.
const dataHrefScript = `(label) => {
	const visibleOnly = false;` + actionResolver + `
	if (!found) return JSON.stringify(null);
	const a = found.tagName === "A" ? found : found.querySelector("a");
	if (!a) return JSON.stringify(null);
	const href = a.getAttribute("href") || "";
	if (!/^data:image\/png(?:;[^,]*)?,/i.test(href)) return JSON.stringify(null);
	return JSON.stringify({ href, download: a.getAttribute("download") || "" });
}`

const settleScript = `async (ms) => {
	await new Promise((r) => requestAnimationFrame(() => requestAnimationFrame(r)));
	const end = Date.now() + ms;
	while (!document.querySelector("textarea")) {
		if (Date.now() > end) return JSON.stringify(false);
		await new Promise((r) => setTimeout(r, 100));
	}
	return JSON.stringify(true);
}`

const domReadyScript = `() => new Promise((resolve) => {
	if (document.readyState !== "loading") return resolve(JSON.stringify(document.readyState));
	document.addEventListener("DOMContentLoaded", () => resolve(JSON.stringify(document.readyState)), { once: true });
})`

const readTextareaScript = `() => {
	const ta = document.querySelector("textarea");
	if (!ta) return JSON.stringify({ found: false, value: "" });
	return JSON.stringify({ found: true, value: ta.value == null ? "" : ta.value });
}`

// writeTextareaScript goes through the prototype setter and fires bubbling
// input and change events so the editor's bindings pick the value up.
const writeTextareaScript = `(value) => {
	const ta = document.querySelector("textarea");
	if (!ta) return JSON.stringify(false);
	const desc = Object.getOwnPropertyDescriptor(HTMLTextAreaElement.prototype, "value");
	if (desc && desc.set) desc.set.call(ta, value); else ta.value = value;
	ta.dispatchEvent(new Event("input", { bubbles: true }));
	ta.dispatchEvent(new Event("change", { bubbles: true }));
	return JSON.stringify(true);
}`

const readMetaScript = `() => {
	const valOfSelect = (id) => {
		const el = document.getElementById(id);
		if (!el) return "";
		const v = el.value == null ? "" : String(el.value);
		if (v) return v;
		const opt = el.options ? el.options[el.selectedIndex] : null;
		return opt ? String(opt.textContent || "").trim() : "";
	};
	const valOfInput = (id) => {
		const el = document.getElementById(id);
		return el ? String(el.value == null ? "" : el.value).trim() : "";
	};
	const subtypes = [...document.querySelectorAll(".ts-control .item")].map((el) => {
		const first = el.childNodes[0];
		return String((first && first.textContent) || el.innerText || "").trim();
	}).filter(Boolean);
	return JSON.stringify({
		name: valOfInput("name"),
		side: valOfSelect("side").toLowerCase(),
		faction: valOfSelect("faction").toLowerCase(),
		kind: valOfSelect("kind").toLowerCase(),
		subtypes,
		text: valOfInput("text"),
		imageUrl: valOfInput("image_url"),
	});
}`

const overlayID = "__await_approval__"

const overlayScript = `(url) => {
	let div = document.getElementById("` + overlayID + `");
	if (!div) {
		div = document.createElement("div");
		div.id = "` + overlayID + `";
		Object.assign(div.style, {
			position: "fixed", right: "12px", bottom: "12px", zIndex: "999999",
			background: "rgba(0,0,0,.2)", color: "#fff", padding: "8px 12px",
			borderRadius: "10px", font: "13px/1.3 -apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Ubuntu,Helvetica,Arial,sans-serif",
			pointerEvents: "none", userSelect: "none",
		});
		document.body.appendChild(div);
	}
	div.textContent = "Waiting for approval… (" + url + ")  •  Terminal: [Enter]=continue  [s]=skip  [r]=reload  [q]=quit";
	return JSON.stringify(true);
}`
