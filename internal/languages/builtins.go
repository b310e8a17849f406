package languages

// pythonBuiltins are names resolved by the interpreter rather than the
// project; references to them are not dependencies.
var pythonBuiltins = map[string]bool{
	"abs": true, "aiter": true, "all": true, "anext": true, "any": true,
	"ascii": true, "bin": true, "bool": true, "breakpoint": true, "bytearray": true,
	"bytes": true, "callable": true, "chr": true, "classmethod": true, "compile": true,
	"complex": true, "delattr": true, "dict": true, "dir": true, "divmod": true,
	"enumerate": true, "eval": true, "exec": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "globals": true, "hasattr": true,
	"hash": true, "help": true, "hex": true, "id": true, "input": true,
	"int": true, "isinstance": true, "issubclass": true, "iter": true, "len": true,
	"list": true, "locals": true, "map": true, "max": true, "memoryview": true,
	"min": true, "next": true, "object": true, "oct": true, "open": true,
	"ord": true, "pow": true, "print": true, "property": true, "range": true,
	"repr": true, "reversed": true, "round": true, "set": true, "setattr": true,
	"slice": true, "sorted": true, "staticmethod": true, "str": true, "sum": true,
	"super": true, "tuple": true, "type": true, "vars": true, "zip": true,
	"__import__": true, "__name__": true, "__file__": true, "__doc__": true,
	"NotImplemented": true, "Ellipsis": true,
	"BaseException": true, "Exception": true, "ArithmeticError": true,
	"AssertionError": true, "AttributeError": true, "EOFError": true,
	"ImportError": true, "IndexError": true, "KeyError": true, "KeyboardInterrupt": true,
	"LookupError": true, "MemoryError": true, "NameError": true,
	"NotImplementedError": true, "OSError": true, "OverflowError": true,
	"RecursionError": true, "RuntimeError": true, "StopIteration": true,
	"SyntaxError": true, "SystemExit": true, "TypeError": true, "ValueError": true,
	"ZeroDivisionError": true, "FileNotFoundError": true, "PermissionError": true,
	"TimeoutError": true,
}
