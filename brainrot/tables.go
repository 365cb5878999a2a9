package brainrot

import "regexp"

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// sub matches any of the |-separated alternatives as whole words, ignoring case.
func sub(alternatives, replacement string) substitution {
	return substitution{
		pattern:     regexp.MustCompile(`(?i)\b(?:` + alternatives + `)\b`),
		replacement: replacement,
	}
}

// Ordered from tamest to most unhinged. Low intensities only get a prefix of
// this table, so the order matters. Phrases come before the words they
// contain ("thank you" before "you", "for real for real" before "for real").
var substitutions = []substitution{
	sub("for real for real", "fr fr"),
	sub("for real", "fr"),
	sub("thank you", "thx"),
	sub("thanks", "thx"),
	sub("laugh out loud|laughing out loud", "lol"),
	sub("oh my god", "omg"),
	sub("in my opinion", "imo"),
	sub("by the way", "btw"),
	sub("as soon as possible", "asap"),
	sub("i don't know|i dont know", "idk"),
	sub("rolling on the floor laughing", "rofl"),
	sub("talk to you later", "ttyl"),
	sub("as far as i know", "afaik"),
	sub("in real life", "irl"),
	sub("on my way", "omw"),
	sub("no problem", "np"),
	sub("shaking my head", "smh"),
	sub("not gonna lie|not going to lie", "ngl"),
	sub("to be honest", "tbh"),
	sub("going to", "gonna"),
	sub("want to", "wanna"),
	sub("got to", "gotta"),
	sub("kind of", "kinda"),
	sub("sort of", "sorta"),
	sub("out of", "outta"),

	sub("you're|you are", "ur"),
	sub("you", "u"),
	sub("your", "ur"),
	sub("are", "r"),
	sub("for", "4"),
	sub("to|too", "2"),
	sub("be", "b"),
	sub("see", "c"),
	sub("okay|ok", "k"),
	sub("love", "luv"),
	sub("what", "wat"),
	sub("that", "dat"),
	sub("the", "da"),
	sub("this", "dis"),
	sub("with", "w/"),
	sub("really", "rly"),
	sub("please", "plz"),
	sub("because", "cuz"),
	sub("about", "bout"),

	sub("cool|awesome|amazing", "bussin"),
	sub("good|great", "fire"),
	sub("bad|terrible", "mid"),
	sub("friend|friends", "bestie"),
	sub("attractive|hot", "baddie"),
	sub("impressive", "slaps"),
	sub("annoying|annoyed", "pressed"),
	sub("upset|sad", "down bad"),
	sub("excited|happy", "vibin"),
	sub("suspicious", "sus"),
	sub("lying|lie", "cap"),
	sub("truth|true", "no cap"),
	sub("charisma|charm", "rizz"),
	sub("flirt|flirting", "pulling"),
	sub("understand|get it", "understood the assignment"),
	sub("skilled|talented", "built different"),
	sub("boring|bored", "dead"),
	sub("weird|strange", "ohio"),

	sub("hello", "YO WHAT'S UP"),
	sub("hi|hey", "YOOOO"),
	sub("goodbye|bye", "PEACE OUT"),
	sub("wow", "I'M SCREAMING"),
	sub("surprised|shocked", "SHOOKETH"),
	sub("laughing", "CRYING AND THROWING UP"),
	sub("agree", "PERIODT POOH"),
	sub("disagree", "NOT THE VIBE CHECK"),
	sub("like", "OBSESSED WITH"),
	sub("dislike", "GIVING VERY MUCH FLOP ENERGY"),
	sub("tired", "RUNNING ON ZERO BATTERY"),
	sub("confused", "MY LAST BRAIN CELL LEFT THE CHAT"),
}

var phrases = []string{
	"no cap",
	"fr fr",
	"based",
	"sigma",
	"lowkey",
	"highkey",
	"respectfully",
	"living rent free in my head",
	"main character energy",
	"it's giving",
	"not the",
	"slay",
	"periodt",
	"as you should",
	"i'm weak",
	"that's so",
	"literally me",
	"vibe check",
	"rent free",
	"ratio",
	"W",
	"L",
	"caught in 4k",
	"touch grass",
	"yeet",
	"sheesh",
	"skibidi",
	"gyat",
	"rizz",
	"on god",
	"finna",
	"bet",
	"bruh moment",
	"simp",
	"chad",
	"cope",
	"sus",
	"no thoughts just vibes",
	"ate and left no crumbs",
	"understood the assignment",
	"unhinged",
	"chronically online",
	"terminally online",
	"not me",
	"core",
	"era",
	"the way",
	"i'm dead",
	"crying",
	"screaming",
	"throwing up",
	"sobbing",
	"skibidi toilet fr",
	"real ohio moment",
	"baby gronk energy",
	"naur because literally",
	"mother is mothering",
	"slay the house down boots",
	"help-",
	"i can't-",
	"the way i-",
	"YEET OR BE YEETED",
	"let's get this bread",
	"sauce it up",
	"straight fire",
	"I can't even",
	"fam",
	"shook",
	"vibin'",
	"legend",
	"whole vibe",
	"real rizz hours",
	"gyatted",
	"flexin'",
	"brainrot magic",
}

var emoji = []string{
	"💀", "😭", "🤣", "👁️👄👁️", "✨", "🔥", "💯", "🙏", "😩", "🥺",
	"😤", "🤪", "💅", "👀", "🤡", "🧠", "🫠", "🫡", "🫥", "🫣",
	"🤌", "🙃", "😈", "🥴", "🤓", "🤨", "🤧", "🤭", "🤔", "🤷‍♀️",
	"🤦‍♂️", "🧢", "❌", "⭐", "⚡", "🌟", "🌈", "🌊", "🍦", "🍭",
	"🎯", "🎪", "🎭", "🎬", "🎮", "🎧", "🎤", "🎵", "🎶", "😎",
	"🥳", "💪", "🐈", "💥", "😍", "💖", "🚽", "💃", "💡", "🍗",
	"💦", "💨",
}

var exclamations = []string{"!!!", "!?!?", "?!?!", "!!", "?!", "!?"}

var intros = []string{
	"YO! ",
	"LISTEN UP! ",
	"OMG! ",
	"BRUH! ",
	"SHEESH! ",
	"YOOOO! ",
	"HEAR ME OUT! ",
	"I CAN'T EVEN! ",
	"BESTIE! ",
}

// Emoji returns a copy of the emoji the transformer decorates text with.
func Emoji() []string {
	return append([]string(nil), emoji...)
}

// Phrases returns a copy of the slang phrases the transformer injects.
func Phrases() []string {
	return append([]string(nil), phrases...)
}
