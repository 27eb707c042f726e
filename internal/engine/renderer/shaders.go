package renderer

const meshVertex = `
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;

uniform mat4 uModel;
uniform mat4 uViewProj;
uniform mat3 uNormalMatrix;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;

void main() {
	vec4 world = uModel * vec4(aPos, 1.0);
	vWorldPos = world.xyz;
	vNormal = normalize(uNormalMatrix * aNormal);
	vUV = aUV;
	gl_Position = uViewProj * world;
}
`

const meshFragment = `
in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;

uniform vec3 uColor;
uniform float uOpacity;
uniform float uRoughness;
uniform float uMetalness;
uniform vec3 uEmissive;
uniform float uEmissiveIntensity;

uniform bool uHasColorMap;
uniform sampler2D uColorMap;
uniform bool uHasNormalMap;
uniform sampler2D uNormalMap;
uniform float uNormalScale;
uniform float uRepeat;

uniform vec3 uEye;
uniform vec3 uLightDir[3];
uniform vec3 uLightColor[3];
uniform vec3 uAmbient;
uniform vec3 uSky;
uniform vec3 uGround;

out vec4 FragColor;

// perturb tilts the geometric normal by a tangent-space normal map using
// screen-space derivatives, so meshes need no tangent attribute.
vec3 perturb(vec3 n, vec2 uv) {
	vec3 mapN = texture(uNormalMap, uv).xyz * 2.0 - 1.0;
	mapN.xy *= uNormalScale;
	vec3 dp1 = dFdx(vWorldPos);
	vec3 dp2 = dFdy(vWorldPos);
	vec2 duv1 = dFdx(uv);
	vec2 duv2 = dFdy(uv);
	vec3 t = dp1 * duv2.y - dp2 * duv1.y;
	vec3 b = dp2 * duv1.x - dp1 * duv2.x;
	float scale = inversesqrt(max(dot(t, t), dot(b, b)));
	return normalize(mat3(t * scale, b * scale, n) * mapN);
}

void main() {
	vec2 uv = vUV * uRepeat;
	vec4 base = vec4(uColor, uOpacity);
	if (uHasColorMap) {
		vec4 texel = texture(uColorMap, uv);
		base.rgb *= pow(texel.rgb, vec3(2.2));
		base.a *= texel.a;
	}
	if (base.a < 0.01) {
		discard;
	}

	vec3 n = normalize(vNormal);
	if (!gl_FrontFacing) {
		n = -n;
	}
	if (uHasNormalMap) {
		n = perturb(n, uv);
	}
	vec3 v = normalize(uEye - vWorldPos);

	float shininess = mix(96.0, 4.0, uRoughness);
	float specStrength = mix(0.04, 0.6, uMetalness) * (1.0 - uRoughness * 0.8);
	vec3 diffuseColor = base.rgb * (1.0 - uMetalness);

	vec3 hemi = mix(uGround, uSky, n.y * 0.5 + 0.5);
	vec3 lit = uAmbient * hemi * base.rgb;
	for (int i = 0; i < 3; i++) {
		vec3 l = normalize(uLightDir[i]);
		float ndl = max(dot(n, l), 0.0);
		vec3 h = normalize(l + v);
		float spec = pow(max(dot(n, h), 0.0), shininess) * specStrength;
		lit += uLightColor[i] * (diffuseColor * ndl + spec * ndl);
	}
	lit += uEmissive * uEmissiveIntensity;

	FragColor = vec4(pow(lit, vec3(1.0 / 2.2)), base.a);
}
`

const lineVertex = `
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec4 aColor;

uniform mat4 uViewProj;

out vec4 vColor;

void main() {
	vColor = aColor;
	gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

const lineFragment = `
in vec4 vColor;
out vec4 FragColor;

void main() {
	FragColor = vColor;
}
`
