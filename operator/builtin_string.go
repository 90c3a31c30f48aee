package operator

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	lru "github.com/golang/groupcache/lru"

	"github.com/duro-db/duro/rel"
)

// regexCacheSize bounds how many compiled patterns `like`/`regex_like` keep
// around; both operators are evaluated once per tuple by qresult's Select
// strategy (§4.8), so recompiling the same pattern on every row of a scan
// is wasted work. Eviction just means the next hit recompiles: there is no
// correctness risk in bounding this cache, unlike the type/table catalog
// caches in catalog.Dbroot (see DESIGN.md).
const regexCacheSize = 256

var (
	regexCacheMu sync.Mutex
	regexCache   = lru.New(regexCacheSize)
)

// compileRegexCached compiles pattern, reusing a previous compilation of
// the same pattern string if still resident in the bounded cache.
func compileRegexCached(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	if v, ok := regexCache.Get(pattern); ok {
		regexCacheMu.Unlock()
		return v.(*regexp.Regexp), nil
	}
	regexCacheMu.Unlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	regexCacheMu.Lock()
	regexCache.Add(pattern, re)
	regexCacheMu.Unlock()
	return re, nil
}

// RegisterStrings adds the STRING operators: `||`, strlen(_b), substr(_b),
// strfind_b, starts_with, like, regex_like, format.
func RegisterStrings(r *Registry) {
	str1 := func(name string, fn func(string) (rel.Value, error)) {
		r.AddReadOnly(&Descriptor{
			Name: name, ParamTypes: []rel.Type{rel.StringType}, ParamCount: 1,
			Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) { return fn(args[0].String()) },
		})
	}

	r.AddReadOnly(&Descriptor{
		Name: "||", ParamTypes: []rel.Type{rel.StringType, rel.StringType}, ParamCount: 2, ReturnType: rel.StringType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return rel.NewString(args[0].String() + args[1].String()), nil
		},
	})

	str1("strlen", func(s string) (rel.Value, error) { return rel.NewInt(int64(len([]rune(s)))), nil })
	str1("strlen_b", func(s string) (rel.Value, error) { return rel.NewInt(int64(len(s))), nil })

	r.AddReadOnly(&Descriptor{
		Name: "substr", ParamTypes: []rel.Type{rel.StringType, rel.IntegerType, rel.IntegerType}, ParamCount: 3,
		ReturnType: rel.StringType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return substr([]rune(args[0].String()), args[1].Int(), args[2].Int())
		},
	})
	r.AddReadOnly(&Descriptor{
		Name: "substr_b", ParamTypes: []rel.Type{rel.StringType, rel.IntegerType, rel.IntegerType}, ParamCount: 3,
		ReturnType: rel.StringType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return substrBytes([]byte(args[0].String()), args[1].Int(), args[2].Int())
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "strfind_b", ParamTypes: []rel.Type{rel.StringType, rel.StringType}, ParamCount: 2, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			i := strings.Index(args[0].String(), args[1].String())
			return rel.NewInt(int64(i)), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "starts_with", ParamTypes: []rel.Type{rel.StringType, rel.StringType}, ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			return rel.NewBool(strings.HasPrefix(args[0].String(), args[1].String())), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "like", ParamTypes: []rel.Type{rel.StringType, rel.StringType}, ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			ok, err := likeMatch(args[0].String(), args[1].String())
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewBool(ok), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "regex_like", ParamTypes: []rel.Type{rel.StringType, rel.StringType}, ParamCount: 2, ReturnType: rel.BooleanType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			re, err := compileRegexCached(args[1].String())
			if err != nil {
				return rel.Value{}, rel.ErrInvalidArgument.New(err.Error())
			}
			return rel.NewBool(re.MatchString(args[0].String())), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "format", ParamCount: -1, ReturnType: rel.StringType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if len(args) == 0 {
				return rel.Value{}, rel.ErrInvalidArgument.New("format() requires a format string")
			}
			rest := make([]interface{}, 0, len(args)-1)
			for _, a := range args[1:] {
				rest = append(rest, formatArg(a))
			}
			return rel.NewString(fmt.Sprintf(args[0].String(), rest...)), nil
		},
	})
}

func formatArg(v rel.Value) interface{} {
	switch v.Kind() {
	case rel.KindInt:
		return v.Int()
	case rel.KindFloat:
		return v.Float()
	case rel.KindBool:
		return v.Bool()
	case rel.KindBinary:
		return v.String()
	default:
		return v
	}
}

func substr(runes []rune, start, length int64) (rel.Value, error) {
	if start < 0 || length < 0 || start+length > int64(len(runes)) {
		return rel.Value{}, rel.ErrInvalidArgument.New("substr() out of range")
	}
	return rel.NewString(string(runes[start : start+length])), nil
}

func substrBytes(b []byte, start, length int64) (rel.Value, error) {
	if start < 0 || length < 0 || start+length > int64(len(b)) {
		return rel.Value{}, rel.ErrInvalidArgument.New("substr_b() out of range")
	}
	return rel.NewString(string(b[start : start+length])), nil
}

// likeMatch implements the DuroDBMS `like` pattern language: `.` matches any
// single character, `*` matches any run of characters.
func likeMatch(s, pattern string) (bool, error) {
	var re strings.Builder
	re.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '.':
			re.WriteString(".")
		case '*':
			re.WriteString(".*")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	rx, err := compileRegexCached(re.String())
	if err != nil {
		return false, rel.ErrInvalidArgument.New(err.Error())
	}
	return rx.MatchString(s), nil
}
