package freshness

import (
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sec(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func tiers(a, b, c int) *MaxStale {
	return &MaxStale{sec(a), sec(b), sec(c)}
}

func newTestResource(t *testing.T, directives ProducerDirectives, opts ...ResourceOption) *Resource[string] {
	t.Helper()
	r, err := NewResource("score", epoch, directives, opts...)
	require.NoError(t, err)
	return r
}

func TestClassify_ScenarioA_MaxAgeOverridesStaleness(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10), MaxStale: tiers(0, 5, 20)})
	consumer := ConsumerDirectives{}.WithMaxAge(sec(12))

	assert.Equal(t, Unusable, Classify(r, consumer, epoch.Add(sec(15))))
}

func TestClassify_ScenarioB_NoStalenessAnywhere(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10)})

	assert.Equal(t, Usable, Classify(r, ConsumerDirectives{}, epoch.Add(sec(10))))
	assert.Equal(t, Unusable, Classify(r, ConsumerDirectives{}, epoch.Add(sec(11))))
}

func TestClassify_ScenarioC_NegotiatedTiers(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10), MaxStale: tiers(0, 10, 20)})
	consumer := ConsumerDirectives{MaxStale: StaleTiers(0, sec(5), sec(30))}

	require.Equal(t, *tiers(0, 5, 20), Negotiate(tiers(0, 10, 20), consumer.MaxStale))

	tests := []struct {
		age  int
		want Classification
	}{
		{age: 5, want: Usable},
		{age: 10, want: Usable},
		{age: 12, want: UsableWhileRevalidate},
		{age: 15, want: UsableWhileRevalidate},
		{age: 20, want: UsableIfError},
		{age: 30, want: UsableIfError},
		{age: 31, want: Unusable},
	}
	for _, tt := range tests {
		got := Classify(r, consumer, epoch.Add(sec(tt.age)))
		assert.Equal(t, tt.want, got, "age=%d", tt.age)
	}
}

func TestClassify_ConsumerDefaultsToProducerTiers(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10), MaxStale: tiers(5, 10, 20)})

	// Without consumer max-stale the producer's plain-usable tier is dropped.
	assert.Equal(t, UsableWhileRevalidate, Classify(r, ConsumerDirectives{}, epoch.Add(sec(12))))
	assert.Equal(t, UsableIfError, Classify(r, ConsumerDirectives{}, epoch.Add(sec(25))))
	assert.Equal(t, Unusable, Classify(r, ConsumerDirectives{}, epoch.Add(sec(31))))
}

func TestClassify_ConsumerOnlyTolerance(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10)})

	consumer := ConsumerDirectives{MaxStale: StaleFor(sec(5))}
	assert.Equal(t, Usable, Classify(r, consumer, epoch.Add(sec(15))))
	assert.Equal(t, Unusable, Classify(r, consumer, epoch.Add(sec(16))))

	anyStale := ConsumerDirectives{MaxStale: AnyStale()}
	assert.Equal(t, Usable, Classify(r, anyStale, epoch.Add(24*time.Hour)))
}

func TestClassify_InitialAgeCounts(t *testing.T) {
	r := newTestResource(t, ProducerDirectives{FreshUntilAge: sec(10)}, WithInitialAge(sec(8)))

	assert.Equal(t, epoch.Add(-sec(8)), r.BirthDate())
	assert.Equal(t, sec(11), r.Age(epoch.Add(sec(3))))
	assert.Equal(t, Unusable, Classify(r, ConsumerDirectives{}, epoch.Add(sec(3))))
}

func TestClassify_UsableAtBirth(t *testing.T) {
	f := func(freshSeconds uint16, initial uint16) bool {
		fresh := sec(int(freshSeconds) + 1)
		r, err := NewResource(1, epoch, ProducerDirectives{FreshUntilAge: fresh}, WithInitialAge(sec(int(initial))))
		if err != nil {
			return false
		}
		return Classify(r, ConsumerDirectives{}, r.BirthDate()) == Usable
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestIsFresh_MatchesAgeBounds(t *testing.T) {
	f := func(freshSeconds uint16, offset int32) bool {
		fresh := sec(int(freshSeconds))
		r, err := NewResource(1, epoch, ProducerDirectives{FreshUntilAge: fresh})
		if err != nil {
			return false
		}
		at := epoch.Add(time.Duration(offset) * time.Millisecond)
		age := r.Age(at)
		return r.IsFresh(at) == (age >= 0 && age <= fresh)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestClassify_MonotonicInAge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		p := [3]int{rng.Intn(30), rng.Intn(30), rng.Intn(30)}
		c := [3]int{rng.Intn(30), rng.Intn(30), rng.Intn(30)}
		directives := ProducerDirectives{FreshUntilAge: sec(rng.Intn(20))}
		if rng.Intn(2) == 0 {
			directives.MaxStale = tiers(p[0], p[1], p[2])
		}
		consumer := ConsumerDirectives{}
		switch rng.Intn(3) {
		case 0:
			consumer.MaxStale = StaleTiers(sec(c[0]), sec(c[1]), sec(c[2]))
		case 1:
			consumer.MaxStale = StaleFor(sec(c[0]))
		}
		if rng.Intn(3) == 0 {
			consumer = consumer.WithMaxAge(sec(rng.Intn(60)))
		}

		r := newTestResource(t, directives)
		prev := Usable
		for age := 0; age <= 120; age++ {
			got := Classify(r, consumer, epoch.Add(sec(age)))
			require.False(t, got.Better(prev),
				"classification improved from %s to %s at age %d (producer=%v consumer=%s)",
				prev, got, age, directives.MaxStale, consumer.MaxStale)
			prev = got
		}
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		producer *MaxStale
		consumer RawMaxStale
		want     MaxStale
	}{
		{
			name:     "neither side",
			producer: nil,
			consumer: RawMaxStale{},
			want:     MaxStale{},
		},
		{
			name:     "producer only zeroes usable tier",
			producer: tiers(5, 10, 20),
			consumer: RawMaxStale{},
			want:     *tiers(0, 10, 20),
		},
		{
			name:     "consumer only",
			producer: nil,
			consumer: StaleTiers(sec(1), sec(2), sec(3)),
			want:     *tiers(1, 2, 3),
		},
		{
			name:     "tighter wins per tier",
			producer: tiers(4, 5, 30),
			consumer: StaleTiers(sec(6), sec(2), sec(10)),
			want:     *tiers(4, 2, 10),
		},
		{
			name:     "any stale defers to producer",
			producer: tiers(1, 2, 3),
			consumer: AnyStale(),
			want:     *tiers(1, 2, 3),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.producer, tt.consumer))
		})
	}
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "usable", Usable.String())
	assert.Equal(t, "usable_while_revalidate", UsableWhileRevalidate.String())
	assert.Equal(t, "usable_if_error", UsableIfError.String())
	assert.Equal(t, "unusable", Unusable.String())
	assert.Equal(t, "unknown", Classification(42).String())
	assert.True(t, Usable.Better(UsableWhileRevalidate))
	assert.True(t, UsableIfError.Better(Unusable))
}
